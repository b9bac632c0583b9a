// Package engine runs the per-minute trigger pass over active reminders:
// match, gate, render, dispatch, count.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/gopkg/util/gopool"

	"github.com/tgifai/teleworker/internal/condition"
	"github.com/tgifai/teleworker/internal/config"
	"github.com/tgifai/teleworker/internal/consts"
	"github.com/tgifai/teleworker/internal/notify"
	"github.com/tgifai/teleworker/internal/pkg/logs"
	"github.com/tgifai/teleworker/internal/pkg/prometheus"
	"github.com/tgifai/teleworker/internal/reminder"
	"github.com/tgifai/teleworker/internal/schedule"
)

const (
	defaultJobTimeout = 60 * time.Second
	persistTimeout    = 10 * time.Second
)

// Resolver gates a reminder on its condition ref. It must not fail.
type Resolver interface {
	Resolve(ctx context.Context, ref string, now time.Time) condition.Result
}

// Notifier delivers rendered text.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, text string, ring bool) notify.Report
}

// ProviderLookup finds internal condition providers. It is only needed for
// the alarms report.
type ProviderLookup interface {
	Lookup(key string) (condition.Provider, bool)
}

// TickReport summarizes one RunTick.
type TickReport struct {
	Evaluated int `json:"evaluated"`
	Due       int `json:"due"`
	Fired     int `json:"fired"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Deferred  int `json:"deferred"`

	Err error `json:"-"`
}

type Options struct {
	Store     reminder.Store
	Matcher   *schedule.Matcher
	Resolver  Resolver
	Notifier  Notifier
	Providers ProviderLookup
	Config    config.SchedulerConfig
}

type Engine struct {
	store     reminder.Store
	matcher   *schedule.Matcher
	resolver  Resolver
	notifier  Notifier
	providers ProviderLookup

	jobTimeout time.Duration
	tickBudget time.Duration

	pool       gopool.Pool
	concurrent chan struct{} // semaphore sized to MaxConcurrentRuns

	runningMu sync.Mutex
	running   map[string]struct{} // reminder ids currently executing (singleton guard)
}

func New(opts Options) *Engine {
	maxConcurrent := opts.Config.MaxConcurrentRuns
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	jobTimeout := time.Duration(opts.Config.JobTimeoutSec) * time.Second
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	matcher := opts.Matcher
	if matcher == nil {
		matcher = schedule.NewMatcher()
	}

	pool := gopool.NewPool("engine", int32(maxConcurrent), gopool.NewConfig())
	pool.SetPanicHandler(func(ctx context.Context, rec interface{}) {
		logs.CtxError(ctx, "[engine] pipeline goroutine panicked: %v", rec)
	})

	return &Engine{
		store:      opts.Store,
		matcher:    matcher,
		resolver:   opts.Resolver,
		notifier:   opts.Notifier,
		providers:  opts.Providers,
		jobTimeout: jobTimeout,
		tickBudget: time.Duration(opts.Config.TickBudgetSec) * time.Second,
		pool:       pool,
		concurrent: make(chan struct{}, maxConcurrent),
		running:    make(map[string]struct{}),
	}
}

func (e *Engine) Matcher() *schedule.Matcher { return e.matcher }

type outcome int

const (
	outcomeFired outcome = iota
	outcomeSkipped
	outcomeFailed
)

// RunTick evaluates every active reminder against now and fires the due
// ones. Nothing a single reminder does can fail the tick; the report and the
// logs carry the per-reminder results.
func (e *Engine) RunTick(ctx context.Context, now time.Time) TickReport {
	if logs.GetLogID(ctx) == "" {
		ctx = logs.WithNewLogID(ctx)
	}
	start := time.Now()
	prometheus.TickTotal.Inc()
	defer func() { prometheus.TickDuration.Observe(time.Since(start).Seconds()) }()

	var rep TickReport
	reminders, err := e.store.ListActive(ctx)
	if err != nil {
		logs.CtxError(ctx, "[engine] list active reminders: %v", err)
		rep.Err = fmt.Errorf("list active reminders: %w", err)
		return rep
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	record := func(o outcome) {
		mu.Lock()
		defer mu.Unlock()
		switch o {
		case outcomeFired:
			rep.Fired++
		case outcomeSkipped:
			rep.Skipped++
		case outcomeFailed:
			rep.Failed++
		}
	}

	acquireCtx, cancelAcquire := e.budgetContext(ctx, start)
	defer cancelAcquire()

	for _, r := range reminders {
		rep.Evaluated++

		if !e.tryMarkRunning(r.ID) {
			logs.CtxDebug(ctx, "[engine] reminder %s still running, skipping", r.ID)
			record(outcomeSkipped)
			continue
		}

		// The listing may predate a firing by an overlapping tick, so due-ness
		// is judged on the stored count read under the guard.
		fresh, err := e.store.Get(ctx, r.ID)
		if err != nil {
			e.markNotRunning(r.ID)
			if errors.Is(err, reminder.ErrNotFound) {
				continue
			}
			logs.CtxWarn(ctx, "[engine] reminder %s: reload: %v", r.ID, err)
			prometheus.ReminderFailures.WithLabelValues("reload").Inc()
			record(outcomeFailed)
			continue
		}
		if !fresh.Active {
			e.markNotRunning(r.ID)
			continue
		}

		due, err := e.matcher.IsDue(fresh.Schedule, fresh.TriggerCount, now)
		if err != nil {
			e.markNotRunning(r.ID)
			logs.CtxWarn(ctx, "[engine] reminder %s (%s): classify schedule %q: %v", fresh.Name, fresh.ID, fresh.Schedule, err)
			prometheus.ReminderFailures.WithLabelValues("classify").Inc()
			record(outcomeFailed)
			continue
		}
		if !due {
			e.markNotRunning(r.ID)
			continue
		}
		rep.Due++

		if !e.acquire(acquireCtx) {
			e.markNotRunning(r.ID)
			logs.CtxWarn(ctx, "[engine] tick budget spent, deferring reminder %s", r.ID)
			prometheus.ReminderFailures.WithLabelValues("deferred").Inc()
			rep.Deferred++
			continue
		}

		rem := fresh
		wg.Add(1)
		e.pool.CtxGo(ctx, func() {
			defer wg.Done()
			defer e.release()
			defer e.markNotRunning(rem.ID)
			record(e.runPipeline(ctx, rem, now))
		})
	}
	wg.Wait()

	logs.CtxInfo(ctx, "[engine] tick %s: evaluated=%d due=%d fired=%d skipped=%d failed=%d deferred=%d",
		now.UTC().Format(time.RFC3339), rep.Evaluated, rep.Due, rep.Fired, rep.Skipped, rep.Failed, rep.Deferred)
	return rep
}

// runPipeline gates, renders, dispatches and counts one due reminder.
func (e *Engine) runPipeline(parent context.Context, r reminder.Reminder, now time.Time) (res outcome) {
	ctx := context.WithValue(parent, consts.CtxKeyReminderID, r.ID)
	ctx, cancel := context.WithTimeout(ctx, e.jobTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			logs.CtxError(ctx, "[engine] reminder %s (%s) panicked: %v", r.Name, r.ID, rec)
			prometheus.ReminderFailures.WithLabelValues("pipeline").Inc()
			res = outcomeFailed
		}
	}()

	text := r.Message
	if r.ConditionRef != "" {
		cond := e.resolver.Resolve(ctx, r.ConditionRef, now)
		if !cond.Trigger {
			logs.CtxDebug(ctx, "[engine] reminder %s: condition %s not met", r.ID, r.ConditionRef)
			return outcomeSkipped
		}
		text = Render(text, cond.Substitutions)
	}

	report := e.notifier.Notify(ctx, r.Recipients, text, r.Ring)
	logs.CtxInfo(ctx, "[engine] fired reminder %s (%s): delivered=%d failed=%d called=%v",
		r.Name, r.ID, len(report.Delivered), len(report.Failed), report.Called)

	// The count moves once per firing tick even if the job context is spent.
	pctx, pcancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer pcancel()
	if err := e.store.IncrementCount(pctx, r.ID); err != nil {
		logs.CtxError(ctx, "[engine] reminder %s: increment count: %v", r.ID, err)
		prometheus.ReminderFailures.WithLabelValues("persist").Inc()
	}

	prometheus.RemindersFired.Inc()
	return outcomeFired
}

// budgetContext bounds how long the tick may keep starting pipelines.
func (e *Engine) budgetContext(ctx context.Context, start time.Time) (context.Context, context.CancelFunc) {
	if e.tickBudget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, start.Add(e.tickBudget))
}

// concurrency helpers

func (e *Engine) acquire(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case e.concurrent <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) release() {
	<-e.concurrent
}

// tryMarkRunning claims id for this pipeline. It reports false when another
// tick already holds it.
func (e *Engine) tryMarkRunning(id string) bool {
	e.runningMu.Lock()
	defer e.runningMu.Unlock()
	if _, ok := e.running[id]; ok {
		return false
	}
	e.running[id] = struct{}{}
	return true
}

func (e *Engine) markNotRunning(id string) {
	e.runningMu.Lock()
	defer e.runningMu.Unlock()
	delete(e.running, id)
}
