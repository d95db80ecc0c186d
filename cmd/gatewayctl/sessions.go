package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage conversation sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions ordered by last activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Sessions []struct {
				ID         string    `json:"id"`
				Model      string    `json:"model"`
				LastActive time.Time `json:"last_active"`
				TurnCount  int       `json:"turn_count"`
			} `json:"sessions"`
			Count int `json:"count"`
		}
		if err := client().get("/v1/sessions", &out); err != nil {
			return err
		}
		if out.Count == 0 {
			fmt.Println("no sessions")
			return nil
		}
		for _, s := range out.Sessions {
			fmt.Printf("%s  model=%s turns=%d last_active=%s\n",
				s.ID, s.Model, s.TurnCount, s.LastActive.Format(time.RFC3339))
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a session's turn history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			ID    string `json:"id"`
			Model string `json:"model"`
			Turns []struct {
				Role       string `json:"role"`
				Content    string `json:"content"`
				Incomplete bool   `json:"incomplete,omitempty"`
			} `json:"turns"`
		}
		if err := client().get("/v1/sessions/"+args[0], &out); err != nil {
			return err
		}
		fmt.Printf("session %s model=%s\n", out.ID, out.Model)
		for _, turn := range out.Turns {
			marker := ""
			if turn.Incomplete {
				marker = " (incomplete)"
			}
			fmt.Printf("[%s]%s %s\n", turn.Role, marker, turn.Content)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().delete("/v1/sessions/" + args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
}
