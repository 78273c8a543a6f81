// Package main provides the flowpilot command line tool for workflow documents.
package main

import (
	"context"
	"os"

	"github.com/dukex/flowpilot/pkg/log"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := NewApp().Run(context.Background(), os.Args); err != nil {
		log.WithModule("cli").Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// NewApp returns the root command.
func NewApp() *cli.Command {
	return &cli.Command{
		Name:                  "flowpilot",
		Usage:                 "Inspect exported browser-automation workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			return ctx, log.Setup(command.String("log-level"), command.String("log-format"))
		},
		Commands: []*cli.Command{
			NewValidateCommand(),
			NewDiffCommand(),
			NewNewCommand(),
		},
	}
}
