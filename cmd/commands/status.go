package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/flowdeck/flowdeck/internal/config"
)

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show engine status",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			client := &http.Client{Timeout: 2 * time.Second}
			url := fmt.Sprintf("http://%s:%d/api/health", cfg.Gateway.Host, cfg.Gateway.Port)
			resp, err := client.Get(url)
			if err != nil {
				fmt.Println("Engine: NOT RUNNING")
				return nil
			}
			defer resp.Body.Close()

			var health struct {
				Status string `json:"status"`
				Tasks  int    `json:"tasks"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
				return fmt.Errorf("decode health: %w", err)
			}

			fmt.Printf("Engine: %s (%d tasks)\n", health.Status, health.Tasks)
			return nil
		},
	}
}
