package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"
)

func TestTick_FailsWithoutConfig(t *testing.T) {
	root := &cli.Command{
		Name:     "teleworker",
		Flags:    []cli.Flag{&cli.StringFlag{Name: "config"}},
		Commands: []*cli.Command{tickHwd.cmd()},
	}
	missing := filepath.Join(t.TempDir(), "config.yaml")

	err := root.Run(context.Background(), []string{"teleworker", "--config", missing, "tick"})
	if !errors.Is(err, errNotConfigured) {
		t.Fatalf("tick without config: err = %v, want errNotConfigured", err)
	}
}

func TestTick_RejectsBadInstant(t *testing.T) {
	root := &cli.Command{
		Name:     "teleworker",
		Flags:    []cli.Flag{&cli.StringFlag{Name: "config"}},
		Commands: []*cli.Command{tickHwd.cmd()},
	}
	err := root.Run(context.Background(), []string{"teleworker", "tick", "--at", "tomorrow"})
	if err == nil {
		t.Fatal("tick accepted --at tomorrow")
	}
}
