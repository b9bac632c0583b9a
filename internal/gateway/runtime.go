package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tgifai/teleworker/internal/channel"
	"github.com/tgifai/teleworker/internal/channel/callmebot"
	"github.com/tgifai/teleworker/internal/channel/lark"
	"github.com/tgifai/teleworker/internal/channel/telegram"
	"github.com/tgifai/teleworker/internal/channel/twilio"
	"github.com/tgifai/teleworker/internal/condition"
	"github.com/tgifai/teleworker/internal/config"
	"github.com/tgifai/teleworker/internal/engine"
	"github.com/tgifai/teleworker/internal/notify"
	"github.com/tgifai/teleworker/internal/pkg/httpx"
	"github.com/tgifai/teleworker/internal/pkg/logs"
	"github.com/tgifai/teleworker/internal/reminder"
	"github.com/tgifai/teleworker/internal/schedule"
)

// Runtime bundles the collaborators shared by the gateway, the tick command
// and the MCP server.
type Runtime struct {
	Config     *config.Config
	Store      reminder.Repository
	Matcher    *schedule.Matcher
	Conditions *condition.Registry
	Resolver   *condition.Resolver
	Channels   *channel.Registry
	Dispatcher *notify.Dispatcher
	Engine     *engine.Engine
}

// NewRuntime opens the store, builds the enabled channels into the process
// registry and wires the engine.
func NewRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	store, err := reminder.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	logs.CtxInfo(ctx, "[gateway] using %s reminder store", cfg.Store.Driver)

	rt := &Runtime{
		Config:   cfg,
		Store:    store,
		Matcher:  NewMatcher(cfg.Scheduler),
		Channels: channel.Default(),
	}

	client := httpx.NewClient(time.Duration(cfg.Conditions.HTTPTimeoutSec) * time.Second)
	rt.Conditions = condition.NewRegistry()
	condition.RegisterDefaults(rt.Conditions, cfg.Conditions, rt.Matcher.LocalZone, client)
	rt.Resolver = condition.NewResolver(rt.Conditions, client)

	if err := initChannels(ctx, rt.Channels, cfg.Channels); err != nil {
		_ = store.Close()
		return nil, err
	}

	var voice channel.VoiceChannel
	if id := cfg.Notify.VoiceChannel; id != "" {
		if voice, err = rt.Channels.GetVoice(id); err != nil {
			logs.CtxWarn(ctx, "[gateway] voice channel %s unavailable, ring disabled: %v", id, err)
			voice = nil
		}
	}
	rt.Dispatcher = notify.New(rt.Channels, cfg.Notify, voice)

	rt.Engine = engine.New(engine.Options{
		Store:     store,
		Matcher:   rt.Matcher,
		Resolver:  rt.Resolver,
		Notifier:  rt.Dispatcher,
		Providers: rt.Conditions,
		Config:    cfg.Scheduler,
	})
	return rt, nil
}

// Close stops the channels and releases the store.
func (rt *Runtime) Close(ctx context.Context) {
	for _, ch := range rt.Channels.List() {
		if err := ch.Stop(ctx); err != nil {
			logs.CtxWarn(ctx, "[gateway] stop channel %s error: %v", ch.ID(), err)
		}
		rt.Channels.Unregister(ch.ID())
	}
	if err := rt.Store.Close(); err != nil {
		logs.CtxWarn(ctx, "[gateway] close store error: %v", err)
	}
}

// ValidateReminder applies the CRUD rules with this runtime's matcher and
// condition registry.
func (rt *Runtime) ValidateReminder(r reminder.Reminder) error {
	return reminder.Validate(r, rt.Matcher, rt.Resolver.Check)
}

// NewMatcher builds the schedule matcher from the scheduler config.
func NewMatcher(cfg config.SchedulerConfig) *schedule.Matcher {
	hh, mm := cfg.DefaultClock()
	return &schedule.Matcher{
		CronZone:      cfg.CronLocation(),
		LocalZone:     cfg.LocalLocation(),
		DefaultHour:   hh,
		DefaultMinute: mm,
	}
}

func initChannels(ctx context.Context, reg *channel.Registry, channels map[string]config.ChannelConfig) error {
	for id, cfg := range channels {
		cfg.ID = id
		if !cfg.Enabled {
			logs.CtxInfo(ctx, "[gateway] channel #%s is disabled, skipping", id)
			continue
		}

		ch, err := NewChannel(id, cfg)
		if err != nil {
			logs.CtxError(ctx, "[gateway] create channel #%s error: %v", id, err)
			return fmt.Errorf("create channel %s: %w", id, err)
		}

		if err = reg.Register(ch); err != nil {
			return fmt.Errorf("register channel %s: %w", id, err)
		}
		logs.CtxInfo(ctx, "[gateway] register channel #%s (%s) success", id, ch.Type())
	}
	return nil
}

// NewChannel builds a channel adapter from its config entry.
func NewChannel(id string, cfg config.ChannelConfig) (channel.Channel, error) {
	switch channel.Type(strings.ToLower(strings.TrimSpace(cfg.Type))) {
	case channel.Telegram:
		return telegram.NewChannel(id, &cfg)
	case channel.Lark:
		return lark.NewChannel(id, &cfg)
	case channel.CallMeBot:
		return callmebot.NewChannel(id, &cfg)
	case channel.Twilio:
		return twilio.NewChannel(id, &cfg)
	default:
		return nil, fmt.Errorf("%w: %s", channel.ErrUnsupported, cfg.Type)
	}
}
