package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/teleworker/internal/gateway"
	"github.com/tgifai/teleworker/internal/mcp"
	"github.com/tgifai/teleworker/internal/pkg/logs"
)

var mcpHwd = &MCPRunner{}

type MCPRunner struct{}

func (r *MCPRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:   "mcp",
		Usage:  "Serve reminder tools over MCP on stdin/stdout",
		Action: r.run,
	}
}

func (r *MCPRunner) run(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// stdout carries the protocol, keep log lines off it.
	logCfg := cfg.Logging
	if logCfg.Output != "file" {
		logCfg.Output = "stderr"
	}
	if err = initLogger(logCfg); err != nil {
		return fmt.Errorf("init logger error: %w", err)
	}

	rt, err := gateway.NewRuntime(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init runtime: %w", err)
	}
	defer rt.Close(context.WithoutCancel(ctx))

	logs.CtxInfo(ctx, "[mcp] serving reminder tools on stdio")
	return mcp.NewServer(rt.Store, rt.ValidateReminder).Run(ctx)
}
