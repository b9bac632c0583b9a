package condition

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tgifai/teleworker/internal/pkg/httpx"
	"github.com/tgifai/teleworker/internal/pkg/logs"
	"github.com/tgifai/teleworker/internal/pkg/prometheus"
)

type Resolver struct {
	Registry *Registry
	Client   *http.Client
}

func NewResolver(reg *Registry, client *http.Client) *Resolver {
	if reg == nil {
		reg = NewRegistry()
	}
	if client == nil {
		client = httpx.NewClient(0)
	}
	return &Resolver{Registry: reg, Client: client}
}

// Evaluate resolves ref and reports every failure. Internal paths never fall
// through to HTTP.
func (r *Resolver) Evaluate(ctx context.Context, ref string, now time.Time) (Result, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(ref, "/"):
		p, ok := r.Registry.Lookup(ref)
		if !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrUnknownCondition, ref)
		}
		out, err := p.Evaluate(ctx, now)
		if err != nil {
			return Result{}, fmt.Errorf("evaluate %s: %w", ref, err)
		}
		return Result{Trigger: out.Trigger, Substitutions: stringify(out.Data)}, nil

	case isExternalRef(ref):
		return r.evaluateExternal(ctx, ref)

	default:
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidConditionRef, ref)
	}
}

// Resolve is Evaluate for the tick: it never fails. Errors are logged, counted
// and resolve to a non-triggering result.
func (r *Resolver) Resolve(ctx context.Context, ref string, now time.Time) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logs.CtxError(ctx, "[condition] resolve %s panicked: %v", ref, rec)
			prometheus.ConditionErrors.WithLabelValues("panic").Inc()
			res = Result{}
		}
	}()

	res, err := r.Evaluate(ctx, ref, now)
	if err != nil {
		logs.CtxWarn(ctx, "[condition] resolve %s failed, treating as not met: %v", ref, err)
		prometheus.ConditionErrors.WithLabelValues(errorKind(err)).Inc()
		return Result{}
	}
	return res
}

// Check validates ref without evaluating it. An empty ref is valid.
func (r *Resolver) Check(ref string) error {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return nil
	case strings.HasPrefix(ref, "/"):
		if _, ok := r.Registry.Lookup(ref); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCondition, ref)
		}
		return nil
	case isExternalRef(ref):
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidConditionRef, ref)
	}
}

func (r *Resolver) evaluateExternal(ctx context.Context, ref string) (Result, error) {
	status, body, err := httpx.GetText(ctx, r.Client, ref)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", ref, err)
	}
	if status < 200 || status >= 300 {
		logs.CtxWarn(ctx, "[condition] %s answered %d, not met", ref, status)
		return Result{}, nil
	}
	return Result{Trigger: strings.TrimSpace(body) == "1"}, nil
}

func isExternalRef(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnknownCondition):
		return "unknown"
	case errors.Is(err, ErrInvalidConditionRef):
		return "invalid"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "provider"
	}
}

func stringify(data map[string]any) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = fmt.Sprint(v)
	}
	return out
}
