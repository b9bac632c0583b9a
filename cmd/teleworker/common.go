package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/teleworker/internal/config"
	"github.com/tgifai/teleworker/internal/consts"
	"github.com/tgifai/teleworker/internal/pkg/logs"
)

var errNotConfigured = errors.New("not configured")

func configPath(cmd *cli.Command) string {
	if p := strings.TrimSpace(cmd.String("config")); p != "" {
		return p
	}
	return consts.DefaultConfigPath()
}

// loadConfig reads the config named by --config. A missing file prints the
// onboarding hint and returns errNotConfigured.
func loadConfig(cmd *cli.Command) (*config.Config, string, error) {
	cfgPath := configPath(cmd)
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Teleworker is not configured yet. Run \"%s onboard\" to get started.\n", consts.AppName)
		return nil, cfgPath, errNotConfigured
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("loading config error: %w", err)
	}
	return cfg, cfgPath, nil
}

func initLogger(cfg config.LoggingConfig) error {
	return logs.Init(logs.Options{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		File:       cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}
