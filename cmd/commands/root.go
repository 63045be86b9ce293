// Package commands defines the flowdeck CLI.
package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/flowdeck/flowdeck/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "flowdeck",
		Usage: "Task graph and automation scheduling engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewServeCommand(),
			NewStatusCommand(),
		},
	}
}
