// Package twilio places phone calls that read a message aloud through the
// Twilio Programmable Voice REST API.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/gg/gconv"
	"github.com/bytedance/sonic"

	"github.com/tgifai/teleworker/internal/channel"
	"github.com/tgifai/teleworker/internal/config"
	"github.com/tgifai/teleworker/internal/pkg/httpx"
	"github.com/tgifai/teleworker/internal/pkg/logs"
)

const (
	defaultBaseURL  = "https://api.twilio.com/2010-04-01"
	defaultVoice    = "alice"
	defaultLanguage = "en-US"
	defaultRepeat   = 3
)

var _ channel.VoiceChannel = (*Twilio)(nil)

type Config struct {
	AccountSID string
	AuthToken  string
	From       string // Twilio number placing the call
	To         string // number to ring
	Voice      string
	Language   string
	Repeat     int
	BaseURL    string
	Timeout    time.Duration
}

func ParseConfig(configMap map[string]interface{}) (*Config, error) {
	cfg := &Config{
		AccountSID: strings.TrimSpace(gconv.To[string](configMap["account_sid"])),
		AuthToken:  strings.TrimSpace(gconv.To[string](configMap["auth_token"])),
		From:       strings.TrimSpace(gconv.To[string](configMap["from"])),
		To:         strings.TrimSpace(gconv.To[string](configMap["to"])),
		Voice:      gconv.To[string](configMap["voice"]),
		Language:   gconv.To[string](configMap["language"]),
		Repeat:     gconv.To[int](configMap["repeat"]),
		BaseURL:    strings.TrimRight(gconv.To[string](configMap["base_url"]), "/"),
		Timeout:    time.Duration(gconv.To[int](configMap["timeout"])) * time.Second,
	}
	switch {
	case cfg.AccountSID == "":
		return nil, errors.New("twilio account_sid is required")
	case cfg.AuthToken == "":
		return nil, errors.New("twilio auth_token is required")
	case cfg.From == "":
		return nil, errors.New("twilio from is required")
	case cfg.To == "":
		return nil, errors.New("twilio to is required")
	}
	if cfg.Voice == "" {
		cfg.Voice = defaultVoice
	}
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
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

type Twilio struct {
	id     string
	config Config
	client *http.Client
}

func NewChannel(chanId string, chCfg *config.ChannelConfig) (*Twilio, error) {
	cfg, err := ParseConfig(chCfg.Config)
	if err != nil {
		return nil, fmt.Errorf("parse twilio config: %w", err)
	}
	return &Twilio{
		id:     chanId,
		config: *cfg,
		client: httpx.NewClient(cfg.Timeout),
	}, nil
}

func (t *Twilio) ID() string { return t.id }

func (t *Twilio) Type() channel.Type { return channel.Twilio }

func (t *Twilio) Stop(_ context.Context) error { return nil }

// MaxTextLen is zero: TwiML has no practical limit for a reminder.
func (t *Twilio) MaxTextLen() int { return 0 }

type callResponse struct {
	SID     string `json:"sid"`
	Message string `json:"message"`
}

func (t *Twilio) Call(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("To", t.config.To)
	form.Set("From", t.config.From)
	form.Set("Twiml", BuildTwiML(text, t.config.Voice, t.config.Language, t.config.Repeat))

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", t.config.BaseURL, url.PathEscape(t.config.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create twilio request: %w", err)
	}
	req.SetBasicAuth(t.config.AccountSID, t.config.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out callResponse
	_ = sonic.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := out.Message
		if msg == "" {
			msg = httpx.Snippet(string(raw))
		}
		return fmt.Errorf("twilio call failed (status %d): %s", resp.StatusCode, msg)
	}

	logs.CtxInfo(ctx, "[channel:twilio] call initiated: %s", out.SID)
	return nil
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// BuildTwiML speaks text repeat times with a one second pause in between.
func BuildTwiML(text, voice, language string, repeat int) string {
	if repeat <= 0 {
		repeat = 1
	}
	say := fmt.Sprintf(`  <Say voice="%s" language="%s">%s</Say>`, voice, language, xmlEscaper.Replace(text))

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<Response>\n")
	for i := 0; i < repeat; i++ {
		if i > 0 {
			b.WriteString("  <Pause length=\"1\"/>\n")
		}
		b.WriteString(say)
		b.WriteString("\n")
	}
	b.WriteString("</Response>")
	return b.String()
}
