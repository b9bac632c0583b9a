package lark

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/tgifai/teleworker/internal/channel"
	"github.com/tgifai/teleworker/internal/config"
	"github.com/tgifai/teleworker/internal/pkg/logs"
)

var _ channel.TextChannel = (*Lark)(nil)

// maxTextContentSize is the upper bound for a Lark text message content (150 KB).
const maxTextContentSize = 150 * 1024

type Lark struct {
	id     string
	config Config
	client *lark.Client
}

func NewChannel(chanId string, chCfg *config.ChannelConfig) (*Lark, error) {
	cfg, err := ParseConfig(chCfg.Config)
	if err != nil {
		return nil, fmt.Errorf("parse lark config: %w", err)
	}

	var opts []lark.ClientOptionFunc
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}

	return &Lark{
		id:     chanId,
		config: *cfg,
		client: lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
	}, nil
}

func (l *Lark) ID() string {
	return l.id
}

func (l *Lark) Type() channel.Type {
	return channel.Lark
}

func (l *Lark) Stop(_ context.Context) error {
	return nil
}

func (l *Lark) SendMessage(ctx context.Context, chatID string, content string) error {
	body, err := buildTextContent(content)
	if err != nil {
		return fmt.Errorf("build lark text content: %w", err)
	}

	resp, err := l.client.Im.Message.Create(ctx,
		larkim.NewCreateMessageReqBuilder().
			ReceiveIdType(l.config.ReceiveIDType).
			Body(larkim.NewCreateMessageReqBodyBuilder().
				MsgType(larkim.MsgTypeText).
				ReceiveId(chatID).
				Content(body).
				Build()).
			Build())
	if err != nil {
		return fmt.Errorf("lark send message: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("lark send message failed: code=%d msg=%s", resp.Code, resp.Msg)
	}

	logs.CtxDebug(ctx, "[channel:lark] #%s sent message to %s", l.id, chatID)
	return nil
}

func buildTextContent(text string) (string, error) {
	if len(text) > maxTextContentSize-32 {
		text = text[:maxTextContentSize-32] + "… [truncated]"
	}
	return sonic.MarshalString(map[string]string{"text": text})
}
