package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"

	"github.com/tgifai/teleworker/internal/channel"
	"github.com/tgifai/teleworker/internal/config"
	"github.com/tgifai/teleworker/internal/pkg/logs"
)

var _ channel.TextChannel = (*Telegram)(nil)

type Telegram struct {
	id     string
	config Config
	bot    *bot.Bot
}

func NewChannel(chanId string, chCfg *config.ChannelConfig) (*Telegram, error) {
	cfg, err := ParseConfig(chCfg.Config)
	if err != nil {
		return nil, fmt.Errorf("parse telegram config: %w", err)
	}

	// outbound only: no update polling, no getMe round trip at boot
	opts := []bot.Option{
		bot.WithSkipGetMe(),
	}
	if cfg.ServerURL != "" {
		opts = append(opts, bot.WithServerURL(cfg.ServerURL))
	}

	tgBot, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Telegram{
		id:     chanId,
		config: *cfg,
		bot:    tgBot,
	}, nil
}

func (c *Telegram) ID() string {
	return c.id
}

func (c *Telegram) Type() channel.Type {
	return channel.Telegram
}

func (c *Telegram) Stop(_ context.Context) error {
	return nil
}

// SendMessage sends content as plain text. chatID is a numeric chat id or a
// public @username.
func (c *Telegram) SendMessage(ctx context.Context, chatID string, content string) error {
	target, err := parseChatID(chatID)
	if err != nil {
		return err
	}

	msg, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: target,
		Text:   content,
	})
	if err != nil {
		return fmt.Errorf("telegram send message to %s: %w", chatID, err)
	}

	logs.CtxDebug(ctx, "[channel:telegram] #%s sent message %d to %s", c.id, msg.ID, chatID)
	return nil
}

func parseChatID(chatID string) (any, error) {
	chatID = strings.TrimSpace(chatID)
	if strings.HasPrefix(chatID, "@") && len(chatID) > 1 {
		return chatID, nil
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID %q: %w", chatID, err)
	}
	return id, nil
}
