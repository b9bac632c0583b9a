// Package callmebot places Telegram voice calls through api.callmebot.com.
package callmebot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/gg/gconv"

	"github.com/tgifai/teleworker/internal/channel"
	"github.com/tgifai/teleworker/internal/config"
	"github.com/tgifai/teleworker/internal/pkg/httpx"
	"github.com/tgifai/teleworker/internal/pkg/logs"
	"github.com/tgifai/teleworker/internal/pkg/utils"
)

const (
	defaultBaseURL = "http://api.callmebot.com/start.php"
	defaultLang    = "en-US-Standard-B"
	defaultRepeat  = 2

	// MaxTextLen is the longest text the service will speak.
	MaxTextLen = 256
)

var _ channel.VoiceChannel = (*CallMeBot)(nil)

type Config struct {
	User    string // @username or phone number linked to CallMeBot
	Lang    string
	Repeat  int
	BaseURL string
	Timeout time.Duration
}

func ParseConfig(configMap map[string]interface{}) (*Config, error) {
	cfg := &Config{
		User:    strings.TrimSpace(gconv.To[string](configMap["user"])),
		Lang:    gconv.To[string](configMap["lang"]),
		Repeat:  gconv.To[int](configMap["rpt"]),
		BaseURL: gconv.To[string](configMap["base_url"]),
		Timeout: time.Duration(gconv.To[int](configMap["timeout"])) * time.Second,
	}
	if cfg.User == "" {
		return nil, errors.New("callmebot user is required")
	}
	if cfg.Lang == "" {
		cfg.Lang = defaultLang
	}
	if cfg.Repeat <= 0 {
		cfg.Repeat = defaultRepeat
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg, nil
}

type CallMeBot struct {
	id     string
	config Config
	client *http.Client
}

func NewChannel(chanId string, chCfg *config.ChannelConfig) (*CallMeBot, error) {
	cfg, err := ParseConfig(chCfg.Config)
	if err != nil {
		return nil, fmt.Errorf("parse callmebot config: %w", err)
	}
	return &CallMeBot{
		id:     chanId,
		config: *cfg,
		client: httpx.NewClient(cfg.Timeout),
	}, nil
}

func (c *CallMeBot) ID() string { return c.id }

func (c *CallMeBot) Type() channel.Type { return channel.CallMeBot }

func (c *CallMeBot) Stop(_ context.Context) error { return nil }

func (c *CallMeBot) MaxTextLen() int { return MaxTextLen }

// Call asks CallMeBot to ring the configured user. A busy line is queued by
// the service and counts as success.
func (c *CallMeBot) Call(ctx context.Context, text string) error {
	q := url.Values{}
	q.Set("user", c.config.User)
	q.Set("text", utils.TruncateRunes(text, MaxTextLen))
	q.Set("lang", c.config.Lang)
	q.Set("rpt", strconv.Itoa(c.config.Repeat))

	logs.CtxInfo(ctx, "[channel:callmebot] calling %s: %q", c.config.User, utils.Truncate(text, 50))

	status, body, err := httpx.GetText(ctx, c.client, c.config.BaseURL+"?"+q.Encode())
	if err != nil {
		return fmt.Errorf("callmebot request: %w", err)
	}

	switch {
	case strings.Contains(body, "Authorization OK"):
		logs.CtxInfo(ctx, "[channel:callmebot] call initiated")
		return nil
	case strings.Contains(body, "Line is busy"):
		logs.CtxInfo(ctx, "[channel:callmebot] call queued (line busy)")
		return nil
	default:
		return fmt.Errorf("callmebot unexpected response (status %d): %s", status, httpx.Snippet(body))
	}
}
