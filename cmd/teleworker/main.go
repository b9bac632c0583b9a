package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/teleworker/internal/consts"
	"github.com/tgifai/teleworker/internal/pkg/logs"
)

func main() {
	cmd := &cli.Command{
		Name:    consts.AppName,
		Usage:   "Scheduled reminders over chat and voice, gated by live conditions",
		Version: consts.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the config file",
				Value:   consts.DefaultConfigPath(),
			},
		},
		Commands: []*cli.Command{
			gwHwd.cmd(),
			tickHwd.cmd(),
			reminderHwd.cmd(),
			msgHwd.cmd(),
			mcpHwd.cmd(),
			onboardHwd.cmd(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logs.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}
