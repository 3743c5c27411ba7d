package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Query the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			client := &http.Client{Timeout: 5 * time.Second}
			url := fmt.Sprintf("http://%s/api/status", cfg.Paths.APIBind)
			resp, err := client.Get(url)
			if err != nil {
				return fmt.Errorf("daemon unreachable at %s: %w", cfg.Paths.APIBind, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("daemon returned status %d", resp.StatusCode)
			}

			var status struct {
				Status  string `json:"status"`
				Samples int    `json:"samples"`
				Tagged  int    `json:"tagged"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon:  %s (%s)\n", status.Status, cfg.Paths.APIBind)
			fmt.Fprintf(out, "Samples: %d (%d tagged)\n", status.Samples, status.Tagged)
			return nil
		},
	}
}
