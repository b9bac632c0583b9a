package logs

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

const hertzTag = "[hertz] "

// hertzLogger routes the gateway's hertz logs into the teleworker logger,
// tagged like every other component. A hertz fatal is logged at error
// level; only teleworker decides when the process exits.
type hertzLogger struct {
	l Logger
}

var _ hlog.FullLogger = (*hertzLogger)(nil)

func NewHlogLogger(l Logger) hlog.FullLogger {
	return &hertzLogger{l: l}
}

func (h *hertzLogger) emit(ctx context.Context, level hlog.Level, format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	var fn func(context.Context, string, ...interface{})
	switch level {
	case hlog.LevelTrace, hlog.LevelDebug:
		fn = h.l.CtxDebug
	case hlog.LevelInfo, hlog.LevelNotice:
		fn = h.l.CtxInfo
	case hlog.LevelWarn:
		fn = h.l.CtxWarn
	default:
		fn = h.l.CtxError
	}
	fn(ctx, "%s%s", hertzTag, msg)
}

func (h *hertzLogger) print(level hlog.Level, v ...interface{}) {
	h.emit(context.Background(), level, "%s", fmt.Sprint(v...))
}

func (h *hertzLogger) Trace(v ...interface{})  { h.print(hlog.LevelTrace, v...) }
func (h *hertzLogger) Debug(v ...interface{})  { h.print(hlog.LevelDebug, v...) }
func (h *hertzLogger) Info(v ...interface{})   { h.print(hlog.LevelInfo, v...) }
func (h *hertzLogger) Notice(v ...interface{}) { h.print(hlog.LevelNotice, v...) }
func (h *hertzLogger) Warn(v ...interface{})   { h.print(hlog.LevelWarn, v...) }
func (h *hertzLogger) Error(v ...interface{})  { h.print(hlog.LevelError, v...) }
func (h *hertzLogger) Fatal(v ...interface{})  { h.print(hlog.LevelFatal, v...) }

func (h *hertzLogger) Tracef(format string, v ...interface{}) {
	h.emit(context.Background(), hlog.LevelTrace, format, v...)
}
func (h *hertzLogger) Debugf(format string, v ...interface{}) {
	h.emit(context.Background(), hlog.LevelDebug, format, v...)
}
func (h *hertzLogger) Infof(format string, v ...interface{}) {
	h.emit(context.Background(), hlog.LevelInfo, format, v...)
}
func (h *hertzLogger) Noticef(format string, v ...interface{}) {
	h.emit(context.Background(), hlog.LevelNotice, format, v...)
}
func (h *hertzLogger) Warnf(format string, v ...interface{}) {
	h.emit(context.Background(), hlog.LevelWarn, format, v...)
}
func (h *hertzLogger) Errorf(format string, v ...interface{}) {
	h.emit(context.Background(), hlog.LevelError, format, v...)
}
func (h *hertzLogger) Fatalf(format string, v ...interface{}) {
	h.emit(context.Background(), hlog.LevelFatal, format, v...)
}

func (h *hertzLogger) CtxTracef(ctx context.Context, format string, v ...interface{}) {
	h.emit(ctx, hlog.LevelTrace, format, v...)
}
func (h *hertzLogger) CtxDebugf(ctx context.Context, format string, v ...interface{}) {
	h.emit(ctx, hlog.LevelDebug, format, v...)
}
func (h *hertzLogger) CtxInfof(ctx context.Context, format string, v ...interface{}) {
	h.emit(ctx, hlog.LevelInfo, format, v...)
}
func (h *hertzLogger) CtxNoticef(ctx context.Context, format string, v ...interface{}) {
	h.emit(ctx, hlog.LevelNotice, format, v...)
}
func (h *hertzLogger) CtxWarnf(ctx context.Context, format string, v ...interface{}) {
	h.emit(ctx, hlog.LevelWarn, format, v...)
}
func (h *hertzLogger) CtxErrorf(ctx context.Context, format string, v ...interface{}) {
	h.emit(ctx, hlog.LevelError, format, v...)
}
func (h *hertzLogger) CtxFatalf(ctx context.Context, format string, v ...interface{}) {
	h.emit(ctx, hlog.LevelFatal, format, v...)
}

// SetLevel and SetOutput are ignored: logging.level and logging.output in the
// config own both.
func (h *hertzLogger) SetLevel(hlog.Level)   {}
func (h *hertzLogger) SetOutput(_ io.Writer) {}
