package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/teleworker/internal/gateway"
	"github.com/tgifai/teleworker/internal/pkg/logs"
)

var tickHwd = &TickRunner{}

type TickRunner struct{}

func (r *TickRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "tick",
		Usage: "Run one scheduling tick and exit, for cron-driven deployments",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "at",
				Usage: "Evaluate as of this RFC3339 instant instead of now",
			},
		},
		Action: r.run,
	}
}

func (r *TickRunner) run(ctx context.Context, cmd *cli.Command) error {
	at := time.Now()
	if s := strings.TrimSpace(cmd.String("at")); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		at = parsed
	}

	// Unlike the interactive commands, a missing config fails the run so a
	// crontab entry surfaces it.
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err = initLogger(cfg.Logging); err != nil {
		return fmt.Errorf("init logger error: %w", err)
	}

	rt, err := gateway.NewRuntime(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init runtime: %w", err)
	}
	defer rt.Close(context.WithoutCancel(ctx))

	rep := rt.Engine.RunTick(logs.WithNewLogID(ctx), at.Truncate(time.Minute))
	fmt.Printf("evaluated=%d due=%d fired=%d skipped=%d failed=%d deferred=%d\n",
		rep.Evaluated, rep.Due, rep.Fired, rep.Skipped, rep.Failed, rep.Deferred)
	return rep.Err
}
