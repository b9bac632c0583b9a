package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	hzServer "github.com/cloudwego/hertz/pkg/app/server"
	hzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	monitorprom "github.com/hertz-contrib/monitor-prometheus"

	"github.com/tgifai/teleworker/internal/config"
	"github.com/tgifai/teleworker/internal/pkg/logs"
	"github.com/tgifai/teleworker/internal/pkg/prometheus"
)

type Gateway struct {
	rt         *Runtime
	cfg        config.GatewayConfig
	httpServer *hzServer.Hertz

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup

	stopOnce sync.Once
	stopErr  error
}

func NewGateway(cfg config.GatewayConfig, rt *Runtime) *Gateway {
	bind := cfg.Bind
	if bind == "" {
		bind = "0.0.0.0:8787"
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	hlog.SetLogger(logs.NewHlogLogger(logs.DefaultLogger()))

	opts := []hzconfig.Option{
		hzServer.WithHostPorts(bind),
		hzServer.WithReadTimeout(timeout),
		hzServer.WithWriteTimeout(timeout),
		hzServer.WithExitWaitTime(5 * time.Second),
	}
	if cfg.MetricsBind != "" {
		opts = append(opts, hzServer.WithTracer(monitorprom.NewServerTracer(
			cfg.MetricsBind, cfg.MetricsPath,
			monitorprom.WithRegistry(prometheus.GetRegistry()),
		)))
	}

	gw := &Gateway{
		rt:         rt,
		cfg:        cfg,
		httpServer: hzServer.Default(opts...),
	}
	gw.registerRoutes()
	return gw
}

// Start serves HTTP and, when the scheduler is enabled, runs the tick loop.
func (gw *Gateway) Start(ctx context.Context) error {
	if gw.rt == nil {
		return fmt.Errorf("gateway runtime is nil")
	}
	gw.runCtx, gw.runCancel = context.WithCancel(ctx)

	go gw.httpServer.Spin()
	logs.CtxInfo(ctx, "[gateway] http server listening on %s", gw.cfg.Bind)
	if gw.cfg.MetricsBind != "" {
		logs.CtxInfo(ctx, "[gateway] metrics served on %s%s", gw.cfg.MetricsBind, gw.cfg.MetricsPath)
	}

	if gw.rt.Config.SchedulerEnabled() {
		interval := time.Duration(gw.rt.Config.Scheduler.TickIntervalSec) * time.Second
		gw.wg.Add(1)
		go func() {
			defer gw.wg.Done()
			gw.tickLoop(gw.runCtx, interval)
		}()
		logs.CtxInfo(ctx, "[gateway] scheduler started (tick=%s, max_concurrent=%d)",
			interval, gw.rt.Config.Scheduler.MaxConcurrentRuns)
	} else {
		logs.CtxInfo(ctx, "[gateway] scheduler disabled, serving HTTP only")
	}
	return nil
}

func (gw *Gateway) Stop(ctx context.Context) error {
	gw.stopOnce.Do(func() {
		if gw.runCancel != nil {
			gw.runCancel()
		}

		done := make(chan struct{})
		go func() {
			gw.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(30 * time.Second):
			logs.CtxWarn(ctx, "[gateway] stop timed out waiting for the running tick")
		}

		if err := gw.httpServer.Shutdown(ctx); err != nil {
			logs.CtxWarn(ctx, "[gateway] shutdown http server error: %v", err)
		}

		gw.rt.Close(ctx)
		logs.CtxInfo(ctx, "[gateway] all resources stopped")
	})
	return gw.stopErr
}

// tickLoop runs one engine tick at every interval boundary. The boundary is
// passed as now so minute matching is not skewed by timer jitter.
func (gw *Gateway) tickLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		next := nextBoundary(time.Now(), interval)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		gw.rt.Engine.RunTick(logs.WithNewLogID(ctx), next)
	}
}

func nextBoundary(now time.Time, interval time.Duration) time.Time {
	return now.Truncate(interval).Add(interval)
}
