package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report the daemon's backend and pool status",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Status         string `json:"status"`
			Backend        string `json:"backend"`
			HasAPIKey      bool   `json:"has_api_key"`
			CLIPath        string `json:"cli_path"`
			MaxConcurrency int    `json:"max_concurrency"`
			Pool           struct {
				Active   int64 `json:"active"`
				Queued   int64 `json:"queued"`
				Capacity int   `json:"capacity"`
				Total    int64 `json:"total"`
				TimedOut int64 `json:"timed_out"`
			} `json:"pool"`
		}
		if err := client().get("/v1/health", &out); err != nil {
			return err
		}
		fmt.Printf("status:   %s\n", out.Status)
		fmt.Printf("backend:  %s\n", out.Backend)
		fmt.Printf("api key:  %v\n", out.HasAPIKey)
		fmt.Printf("cli path: %s\n", out.CLIPath)
		fmt.Printf("pool:     %d/%d active, %d queued, %d served, %d timed out\n",
			out.Pool.Active, out.Pool.Capacity, out.Pool.Queued, out.Pool.Total, out.Pool.TimedOut)
		return nil
	},
}
