// Package notify fans a rendered reminder out to its recipients and
// optionally rings the configured voice channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/tgifai/teleworker/internal/channel"
	"github.com/tgifai/teleworker/internal/config"
	"github.com/tgifai/teleworker/internal/pkg/logs"
	"github.com/tgifai/teleworker/internal/pkg/prometheus"
	"github.com/tgifai/teleworker/internal/pkg/utils"
)

var (
	ErrUnknownChannel = errors.New("unknown text channel")
	ErrNoVoiceChannel = errors.New("no voice channel configured")
	ErrNoRecipient    = errors.New("empty recipient")
)

// TextResolver finds text channels by id. *channel.Registry satisfies it.
type TextResolver interface {
	GetText(id string) (channel.TextChannel, error)
}

type Dispatcher struct {
	Texts TextResolver
	// DefaultChannel receives recipients that carry no channel prefix.
	DefaultChannel string
	Voice          channel.VoiceChannel
	Limiter        *rate.Limiter
}

// Report describes one Notify call. Failed is keyed by recipient as given.
type Report struct {
	Delivered []string
	Failed    map[string]error
	Called    bool
	CallErr   error
}

func (r Report) Ok() bool {
	return len(r.Failed) == 0 && r.CallErr == nil
}

// New builds a dispatcher from the notify config. voice may be nil.
func New(texts TextResolver, cfg config.NotifyConfig, voice channel.VoiceChannel) *Dispatcher {
	d := &Dispatcher{
		Texts:          texts,
		DefaultChannel: cfg.DefaultChannel,
		Voice:          voice,
	}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		d.Limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return d
}

// SplitRecipient splits "<channelID>:<chatID>". A recipient without a prefix
// returns an empty channel id.
func SplitRecipient(recipient string) (channelID, chatID string) {
	recipient = strings.TrimSpace(recipient)
	if i := strings.IndexByte(recipient, ':'); i > 0 {
		return recipient[:i], recipient[i+1:]
	}
	return "", recipient
}

// Notify sends text to every recipient independently and rings once when ring
// is set. It never fails as a whole; per-recipient errors are in the report.
func (d *Dispatcher) Notify(ctx context.Context, recipients []string, text string, ring bool) Report {
	rep := Report{Failed: make(map[string]error)}

	for _, rcpt := range recipients {
		if err := d.sendOne(ctx, rcpt, text); err != nil {
			logs.CtxWarn(ctx, "[notify] send to %s failed: %v", rcpt, err)
			rep.Failed[rcpt] = err
			continue
		}
		rep.Delivered = append(rep.Delivered, rcpt)
	}

	if ring {
		rep.Called = true
		rep.CallErr = d.ring(ctx, text)
		if rep.CallErr != nil {
			logs.CtxWarn(ctx, "[notify] voice call failed: %v", rep.CallErr)
		}
	}
	return rep
}

// Send delivers text to one recipient.
func (d *Dispatcher) Send(ctx context.Context, recipient, text string) error {
	return d.sendOne(ctx, recipient, text)
}

func (d *Dispatcher) sendOne(ctx context.Context, recipient, text string) (err error) {
	chanID, chatID := SplitRecipient(recipient)
	if chanID == "" {
		chanID = d.DefaultChannel
	}
	label := chanID
	if label == "" {
		label = "none"
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		result := "ok"
		if err != nil {
			result = "error"
		}
		prometheus.NotifySends.WithLabelValues(label, result).Inc()
	}()

	if chatID == "" {
		return ErrNoRecipient
	}
	if d.Texts == nil || chanID == "" {
		return fmt.Errorf("%w: no channel for %q", ErrUnknownChannel, recipient)
	}
	ch, err := d.Texts.GetText(chanID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownChannel, err)
	}

	if d.Limiter != nil {
		if err := d.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	logs.CtxDebug(ctx, "[notify] sending to %s via %s", chatID, chanID)
	return ch.SendMessage(ctx, chatID, text)
}

func (d *Dispatcher) ring(ctx context.Context, text string) (err error) {
	if d.Voice == nil {
		return ErrNoVoiceChannel
	}
	id := d.Voice.ID()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		result := "ok"
		if err != nil {
			result = "error"
		}
		prometheus.VoiceCalls.WithLabelValues(id, result).Inc()
	}()

	return d.Voice.Call(ctx, utils.TruncateRunes(text, d.Voice.MaxTextLen()))
}
