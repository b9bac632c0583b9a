package logs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tgifai/teleworker/internal/consts"
)

// textFormatter renders "LEVEL time file:line logid message".
type textFormatter struct {
	color bool
}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	level := strings.ToUpper(entry.Level.String())
	if f.color {
		level = paintLevel(entry.Level, level)
	}

	// Frames between the caller and Format: logrus internals plus our facade.
	// A context-bound entry goes through one fewer wrapper.
	skip := 9
	if entry.Context != nil {
		skip = 8
	}
	_, file, line, ok := runtime.Caller(skip)
	if ok {
		file = shortPath(file)
	}

	logID := ""
	if entry.Context != nil {
		logID, _ = entry.Context.Value(consts.CtxKeyLogID).(string)
	}

	return []byte(fmt.Sprintf("%s %s %s:%d %s %s\n",
		level,
		entry.Time.Format("2006-01-02 15:04:05,000"),
		file,
		line,
		logID,
		entry.Message,
	)), nil
}

func shortPath(full string) string {
	dir, file := filepath.Split(full)
	if dir == "" {
		return file
	}
	return filepath.Base(filepath.Clean(dir)) + "/" + file
}

var (
	colorDebug = color.New(color.FgCyan)
	colorInfo  = color.New(color.FgGreen)
	colorWarn  = color.New(color.FgYellow)
	colorError = color.New(color.FgRed)
)

func paintLevel(level logrus.Level, text string) string {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return colorDebug.Sprint(text)
	case logrus.InfoLevel:
		return colorInfo.Sprint(text)
	case logrus.WarnLevel:
		return colorWarn.Sprint(text)
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return colorError.Sprint(text)
	default:
		return text
	}
}

func colorEnabled(output string) bool {
	return output != "file" && !color.NoColor
}

func openWriter(opts Options, output string) (io.Writer, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "file":
		return rotatingFile(opts)
	case "both":
		w, err := rotatingFile(opts)
		if err != nil {
			return nil, err
		}
		return &teeWriter{console: os.Stdout, file: w}, nil
	default:
		return nil, fmt.Errorf("unsupported log output: %s", output)
	}
}

func rotatingFile(opts Options) (io.Writer, error) {
	if strings.TrimSpace(opts.File) == "" {
		return nil, fmt.Errorf("log file is required when output includes file")
	}
	if dir := filepath.Dir(opts.File); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}

	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = 100
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: max(opts.MaxBackups, 0),
		MaxAge:     max(opts.MaxAge, 0),
		Compress:   opts.Compress,
	}, nil
}

// teeWriter mirrors console output into the log file without color codes.
type teeWriter struct {
	console io.Writer
	file    io.Writer
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func (w *teeWriter) Write(p []byte) (int, error) {
	if _, err := w.console.Write(p); err != nil {
		return 0, err
	}
	if _, err := w.file.Write(ansiEscape.ReplaceAll(p, nil)); err != nil {
		return 0, err
	}
	return len(p), nil
}
