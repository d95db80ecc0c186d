package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	chatModel   string
	chatSession string
)

var chatCmd = &cobra.Command{
	Use:   "chat <prompt...>",
	Short: "Send a one-shot chat completion",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{
			"model": chatModel,
			"messages": []map[string]any{
				{"role": "user", "content": strings.Join(args, " ")},
			},
		}
		if chatSession != "" {
			req["session_id"] = chatSession
		}
		var out struct {
			Choices []struct {
				Message struct {
					Content json.RawMessage `json:"content"`
				} `json:"message"`
			} `json:"choices"`
			Usage struct {
				TotalTokens int `json:"total_tokens"`
			} `json:"usage"`
		}
		if err := client().post("/v1/chat/completions", req, &out); err != nil {
			return err
		}
		if len(out.Choices) == 0 {
			return fmt.Errorf("gateway returned no choices")
		}
		var text string
		if err := json.Unmarshal(out.Choices[0].Message.Content, &text); err != nil {
			text = string(out.Choices[0].Message.Content)
		}
		fmt.Println(text)
		fmt.Printf("(%d tokens)\n", out.Usage.TotalTokens)
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatModel, "model", "claude-sonnet-4", "model name to request")
	chatCmd.Flags().StringVar(&chatSession, "session", "", "session id for multi-turn context")
}
