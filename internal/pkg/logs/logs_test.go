package logs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		" WARN ":  WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"fatal":   FatalLevel,
		"":        InfoLevel,
		"verbose": InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfiguredLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "teleworker.log")
	l, err := newConfiguredLogger(Options{Level: "warn", Output: "file", File: path})
	if err != nil {
		t.Fatalf("newConfiguredLogger() error = %v", err)
	}

	ctx := l.SetLogID(context.Background(), "tick-1")
	l.CtxInfo(ctx, "[engine] hidden below warn")
	l.CtxWarn(ctx, "[engine] reminder %s deferred", "abc")
	l.Flush()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(raw)
	if strings.Contains(out, "hidden below warn") {
		t.Fatalf("info line written at warn level:\n%s", out)
	}
	if !strings.Contains(out, "reminder abc deferred") {
		t.Fatalf("warn line missing:\n%s", out)
	}
}

func TestOpenWriter_Rejects(t *testing.T) {
	if _, err := openWriter(Options{}, "syslog"); err == nil {
		t.Fatal("unknown output should fail")
	}
	if _, err := openWriter(Options{}, "file"); err == nil {
		t.Fatal("file output without a path should fail")
	}
	if w, err := openWriter(Options{}, "stderr"); err != nil || w != os.Stderr {
		t.Fatalf("stderr output = %v, %v", w, err)
	}
}

func TestHlogLogger_TagsAndLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hertz.log")
	l, err := newConfiguredLogger(Options{Level: "warn", Output: "file", File: path})
	if err != nil {
		t.Fatalf("newConfiguredLogger() error = %v", err)
	}

	h := NewHlogLogger(l)
	h.SetLevel(hlog.LevelTrace)
	h.Info("accepted connection")
	h.Warn("50% of workers busy")
	h.CtxWarnf(context.Background(), "slow handler %s", "/tick")
	h.Fatal("listener closed")
	l.Flush()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(raw)
	if strings.Contains(out, "accepted connection") {
		t.Fatalf("hertz SetLevel overrode the configured level:\n%s", out)
	}
	for _, want := range []string{
		"[hertz] 50% of workers busy",
		"[hertz] slow handler /tick",
		"[hertz] listener closed",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}
