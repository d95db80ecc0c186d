// Package anthropic is the hosted Messages API backend. It sends native
// requests upstream and normalizes both aggregate and SSE responses into
// the shared event stream.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	api "github.com/promptgate/gateway/internal/anthropic"
	"github.com/promptgate/gateway/internal/event"
	"github.com/promptgate/gateway/internal/fault"
	"github.com/promptgate/gateway/internal/orchestrator"
)

const defaultBaseURL = "https://api.anthropic.com"
const defaultVersion = "2023-06-01"

// Client talks to the hosted Messages endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	version    string
	httpClient *http.Client
}

// Config holds client construction options.
type Config struct {
	APIKey  string
	BaseURL string
	Version string
	// HTTPClient overrides the default client; request deadlines come
	// from the invocation context, not a client timeout.
	HTTPClient *http.Client
}

// New creates a Client. The API key is required.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("anthropic: api key required")
	}
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		version = defaultVersion
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{apiKey: cfg.APIKey, baseURL: baseURL, version: version, httpClient: hc}, nil
}

var _ orchestrator.Runner = (*Client)(nil)

// Run executes one remote invocation, emitting normalized events and
// always terminating the sequence.
func (c *Client) Run(ctx context.Context, inv orchestrator.Invocation, emit func(event.Event)) {
	if inv.Native == nil {
		emit(event.Errorf(fault.KindValidation, "remote invocation missing message payload"))
		return
	}
	payload := *inv.Native
	payload.Stream = inv.Stream
	if inv.Model != "" {
		payload.Model = inv.Model
	}

	body, err := json.Marshal(payload)
	if err != nil {
		emit(event.FromError(fault.Wrap(fault.KindBackend, err, "encode upstream request")))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		emit(event.FromError(fault.Wrap(fault.KindBackend, err, "build upstream request")))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.version)
	if inv.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			emit(event.Errorf(fault.KindTimeout, "upstream request exceeded its deadline"))
			return
		}
		emit(event.FromError(fault.Wrap(fault.KindBackend, err, "reach upstream API")))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		emit(event.FromError(statusFault(resp)))
		return
	}
	if inv.Stream {
		c.relayStream(ctx, resp.Body, emit)
		return
	}
	c.relayAggregate(resp.Body, emit)
}

// statusFault classifies a non-200 upstream response without leaking its
// body to clients.
func statusFault(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var envelope api.ErrorEnvelope
	detail := ""
	if err := json.Unmarshal(body, &envelope); err == nil {
		detail = envelope.Error.Message
	}
	kind := fault.KindBackend
	if resp.StatusCode == http.StatusTooManyRequests {
		kind = fault.KindCapacity
	}
	return fault.Wrap(kind, fmt.Errorf("upstream http %d: %s", resp.StatusCode, detail),
		"upstream API returned status %d", resp.StatusCode)
}

func (c *Client) relayAggregate(body io.Reader, emit func(event.Event)) {
	var native api.NativeResponse
	if err := json.NewDecoder(body).Decode(&native); err != nil {
		emit(event.FromError(fault.Wrap(fault.KindBackend, err, "decode upstream response")))
		return
	}
	role := native.Role
	if role == "" {
		role = "assistant"
	}
	emit(event.Role(role))
	for i, block := range native.Content {
		if block.Type != "text" {
			continue
		}
		emit(event.BlockStart(i))
		if block.Text != "" {
			emit(event.Delta(i, block.Text))
		}
		emit(event.BlockStop(i))
	}
	emit(event.Completion(normalizeStopReason(native.StopReason), event.Usage{
		InputTokens:  native.Usage.InputTokens,
		OutputTokens: native.Usage.OutputTokens,
	}))
}

// relayStream parses upstream SSE frames into normalized events. Malformed
// frames terminate the stream with a protocol fault.
func (c *Client) relayStream(ctx context.Context, body io.Reader, emit func(event.Event)) {
	var (
		usage      event.Usage
		stopReason string
		eventName  string
	)
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			emit(event.Errorf(fault.KindTimeout, "upstream stream exceeded its deadline"))
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			eventName = ""
			continue
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		case !strings.HasPrefix(line, "data:"):
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}
		var ev api.StreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			emit(event.FromError(fault.Wrap(fault.KindProtocol, err, "malformed upstream stream frame")))
			return
		}
		typ := ev.Type
		if typ == "" {
			typ = eventName
		}
		switch typ {
		case api.EventMessageStart:
			role := "assistant"
			if ev.Message != nil {
				if ev.Message.Role != "" {
					role = ev.Message.Role
				}
				usage.InputTokens = ev.Message.Usage.InputTokens
			}
			emit(event.Role(role))
		case api.EventContentBlockStart:
			emit(event.BlockStart(ev.Index))
		case api.EventContentBlockDelta:
			if ev.Delta != nil && ev.Delta.Text != "" {
				emit(event.Delta(ev.Index, ev.Delta.Text))
			}
		case api.EventContentBlockStop:
			emit(event.BlockStop(ev.Index))
		case api.EventMessageDelta:
			if ev.Delta != nil && ev.Delta.StopReason != "" {
				stopReason = ev.Delta.StopReason
			}
			if ev.Usage != nil {
				usage.OutputTokens = ev.Usage.OutputTokens
			}
		case api.EventMessageStop:
			emit(event.Completion(normalizeStopReason(stopReason), usage))
			return
		case api.EventError:
			msg := "upstream stream error"
			if ev.Error != nil && ev.Error.Message != "" {
				msg = ev.Error.Message
			}
			emit(event.Errorf(fault.KindBackend, "%s", msg))
			return
		case api.EventPing:
			// keepalive
		}
	}
	if err := scanner.Err(); err != nil {
		emit(event.FromError(fault.Wrap(fault.KindBackend, err, "read upstream stream")))
		return
	}
	emit(event.Errorf(fault.KindProtocol, "upstream stream ended without message_stop"))
}

// normalizeStopReason maps upstream stop reasons onto the gateway's
// internal vocabulary.
func normalizeStopReason(reason string) string {
	switch reason {
	case "max_tokens":
		return "length"
	case "", "end_turn", "stop_sequence":
		return "stop"
	default:
		return reason
	}
}
