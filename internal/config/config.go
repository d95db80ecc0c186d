// Package config loads gateway settings from an optional YAML file with
// GATEWAY_* environment overrides layered on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAllowedCommands is the CLI command allow-list applied when the
// configuration names none.
var DefaultAllowedCommands = []string{"chat", "ask", "code", "explain", "fix", "test", "review"}

// Config describes the gateway runtime.
type Config struct {
	// Port the HTTP server listens on.
	Port int `yaml:"port"`
	// APIKey guards inbound requests; empty disables the auth check.
	APIKey string `yaml:"api_key"`

	// BackendMode selects the transport: api, cli, or auto. Auto prefers
	// the hosted API when a backend key is present, the CLI otherwise.
	BackendMode string `yaml:"backend_mode"`

	// Hosted API backend.
	AnthropicAPIKey  string `yaml:"anthropic_api_key"`
	AnthropicBaseURL string `yaml:"anthropic_base_url"`
	AnthropicVersion string `yaml:"anthropic_version"`

	// CLI backend.
	CLIPath         string   `yaml:"cli_path"`
	AllowedCommands []string `yaml:"allowed_commands"`

	// Concurrency and deadlines.
	MaxConcurrency    int     `yaml:"max_concurrency"`
	QueueWaitSec      float64 `yaml:"queue_wait_sec"`
	DefaultTimeoutSec float64 `yaml:"default_timeout_sec"`
	MaxTimeoutSec     float64 `yaml:"max_timeout_sec"`

	// Session storage. Backend is sqlite or postgres.
	SessionBackend   string  `yaml:"session_backend"`
	SessionPath      string  `yaml:"session_path"`
	PostgresDSN      string  `yaml:"postgres_dsn"`
	SessionMaxTurns  int     `yaml:"session_max_turns"`
	SessionTTLHours  float64 `yaml:"session_ttl_hours"`
	SweepIntervalSec float64 `yaml:"sweep_interval_sec"`

	// Relay buffering cap for non-streaming responses, in bytes.
	MaxBufferBytes int `yaml:"max_buffer_bytes"`

	// Logging.
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
}

// Load reads the YAML file at path when it exists, then applies GATEWAY_*
// environment overrides and defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	cfg.Port = parseOptionalInt(firstNonEmpty(os.Getenv("GATEWAY_PORT"), itoa(cfg.Port)), 8084)
	cfg.APIKey = firstNonEmpty(os.Getenv("GATEWAY_API_KEY"), cfg.APIKey)
	cfg.BackendMode = strings.ToLower(firstNonEmpty(os.Getenv("GATEWAY_BACKEND_MODE"), cfg.BackendMode, "auto"))

	cfg.AnthropicAPIKey = firstNonEmpty(os.Getenv("GATEWAY_ANTHROPIC_API_KEY"), os.Getenv("ANTHROPIC_API_KEY"), cfg.AnthropicAPIKey)
	cfg.AnthropicBaseURL = firstNonEmpty(os.Getenv("GATEWAY_ANTHROPIC_BASE_URL"), cfg.AnthropicBaseURL)
	cfg.AnthropicVersion = firstNonEmpty(os.Getenv("GATEWAY_ANTHROPIC_VERSION"), cfg.AnthropicVersion, "2023-06-01")

	cfg.CLIPath = firstNonEmpty(os.Getenv("GATEWAY_CLI_PATH"), cfg.CLIPath, "claude")
	if env := os.Getenv("GATEWAY_ALLOWED_COMMANDS"); env != "" {
		cfg.AllowedCommands = parseCSV(env)
	}
	if len(cfg.AllowedCommands) == 0 {
		cfg.AllowedCommands = append([]string(nil), DefaultAllowedCommands...)
	}

	cfg.MaxConcurrency = parseOptionalInt(firstNonEmpty(os.Getenv("GATEWAY_MAX_CONCURRENCY"), itoa(cfg.MaxConcurrency)), 4)
	cfg.QueueWaitSec = parseOptionalFloat(firstNonEmpty(os.Getenv("GATEWAY_QUEUE_WAIT_SEC"), ftoa(cfg.QueueWaitSec)), 30)
	cfg.DefaultTimeoutSec = parseOptionalFloat(firstNonEmpty(os.Getenv("GATEWAY_DEFAULT_TIMEOUT_SEC"), ftoa(cfg.DefaultTimeoutSec)), 120)
	cfg.MaxTimeoutSec = parseOptionalFloat(firstNonEmpty(os.Getenv("GATEWAY_MAX_TIMEOUT_SEC"), ftoa(cfg.MaxTimeoutSec)), 600)

	cfg.SessionBackend = strings.ToLower(firstNonEmpty(os.Getenv("GATEWAY_SESSION_BACKEND"), cfg.SessionBackend, "sqlite"))
	cfg.SessionPath = firstNonEmpty(os.Getenv("GATEWAY_SESSION_PATH"), cfg.SessionPath, defaultSessionPath())
	cfg.PostgresDSN = firstNonEmpty(os.Getenv("GATEWAY_POSTGRES_DSN"), cfg.PostgresDSN)
	cfg.SessionMaxTurns = parseOptionalInt(firstNonEmpty(os.Getenv("GATEWAY_SESSION_MAX_TURNS"), itoa(cfg.SessionMaxTurns)), 100)
	cfg.SessionTTLHours = parseOptionalFloat(firstNonEmpty(os.Getenv("GATEWAY_SESSION_TTL_HOURS"), ftoa(cfg.SessionTTLHours)), 24)
	cfg.SweepIntervalSec = parseOptionalFloat(firstNonEmpty(os.Getenv("GATEWAY_SWEEP_INTERVAL_SEC"), ftoa(cfg.SweepIntervalSec)), 300)

	cfg.MaxBufferBytes = parseOptionalInt(firstNonEmpty(os.Getenv("GATEWAY_MAX_BUFFER_BYTES"), itoa(cfg.MaxBufferBytes)), 8<<20)

	cfg.LogFile = firstNonEmpty(os.Getenv("GATEWAY_LOG_FILE"), cfg.LogFile)
	cfg.LogLevel = strings.ToLower(firstNonEmpty(os.Getenv("GATEWAY_LOG_LEVEL"), cfg.LogLevel, "info"))

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.BackendMode {
	case "api", "cli", "auto":
	default:
		return fmt.Errorf("invalid backend_mode %q (want api, cli, or auto)", c.BackendMode)
	}
	switch c.SessionBackend {
	case "sqlite":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("session_backend postgres requires postgres_dsn")
		}
	default:
		return fmt.Errorf("invalid session_backend %q (want sqlite or postgres)", c.SessionBackend)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must not be negative")
	}
	return nil
}

// UseHostedAPI reports whether requests should run against the hosted API.
func (c Config) UseHostedAPI() bool {
	switch c.BackendMode {
	case "api":
		return true
	case "cli":
		return false
	default:
		return c.AnthropicAPIKey != ""
	}
}

// QueueWait returns the slot queue bound as a duration.
func (c Config) QueueWait() time.Duration { return secs(c.QueueWaitSec) }

// DefaultTimeout returns the default invocation deadline.
func (c Config) DefaultTimeout() time.Duration { return secs(c.DefaultTimeoutSec) }

// MaxTimeout returns the invocation deadline ceiling.
func (c Config) MaxTimeout() time.Duration { return secs(c.MaxTimeoutSec) }

// SessionTTL returns the idle eviction threshold.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours * float64(time.Hour))
}

// SweepInterval returns the sweep cadence.
func (c Config) SweepInterval() time.Duration { return secs(c.SweepIntervalSec) }

func secs(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sessions.db"
	}
	return home + "/.promptgate/sessions.db"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseOptionalInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return n
}

func parseOptionalFloat(raw string, def float64) float64 {
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return def
	}
	return f
}

func itoa(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func ftoa(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
