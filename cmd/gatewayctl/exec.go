package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	execTimeout float64
	execWorkdir string
)

var execCmd = &cobra.Command{
	Use:   "exec <command> [args...]",
	Short: "Run an allow-listed CLI command through the daemon",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{
			"command": args[0],
			"args":    args[1:],
		}
		if execTimeout > 0 {
			req["timeout"] = execTimeout
		}
		if execWorkdir != "" {
			req["working_dir"] = execWorkdir
		}
		var out struct {
			Success  bool    `json:"success"`
			Output   any     `json:"output"`
			Error    string  `json:"error"`
			ExitCode int     `json:"exit_code"`
			Duration float64 `json:"duration"`
		}
		if err := client().post("/v1/cli/execute", req, &out); err != nil {
			return err
		}
		if !out.Success {
			fmt.Fprintf(os.Stderr, "failed (exit %d, %.2fs): %s\n", out.ExitCode, out.Duration, out.Error)
			os.Exit(1)
		}
		if text, ok := out.Output.(string); ok {
			fmt.Print(text)
			if text != "" && text[len(text)-1] != '\n' {
				fmt.Println()
			}
		} else {
			fmt.Printf("%v\n", out.Output)
		}
		return nil
	},
}

func init() {
	execCmd.Flags().Float64Var(&execTimeout, "timeout", 0, "invocation timeout in seconds")
	execCmd.Flags().StringVar(&execWorkdir, "workdir", "", "working directory for the CLI process")
}
