package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/teleworker/internal/channel"
	"github.com/tgifai/teleworker/internal/gateway"
)

var msgHwd = &MsgRunner{}

type MsgRunner struct{}

func (r *MsgRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "msg",
		Usage: "Send a one-off message through a configured text channel",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "channelId",
				Aliases: []string{"chanId"},
				Usage:   "Channel ID defined in the config file",
			},
			&cli.StringFlag{
				Name:  "chatId",
				Usage: "Target chat ID or user ID",
			},
			&cli.StringFlag{
				Name:    "content",
				Aliases: []string{"m"},
				Usage:   "Message body",
			},
		},
		Action: r.run,
	}
}

func (r *MsgRunner) run(ctx context.Context, cmd *cli.Command) error {
	channelID := strings.TrimSpace(cmd.String("channelId"))
	if channelID == "" {
		return errors.New("--channelId is required")
	}
	chatID := strings.TrimSpace(cmd.String("chatId"))
	if chatID == "" {
		return errors.New("--chatId is required")
	}
	content := strings.TrimSpace(cmd.String("content"))
	if content == "" {
		return errors.New("--content cannot be empty")
	}

	cfg, _, err := loadConfig(cmd)
	if errors.Is(err, errNotConfigured) {
		return nil
	}
	if err != nil {
		return err
	}

	chCfg, ok := cfg.Channels[channelID]
	if !ok {
		return fmt.Errorf("channel %q was not found in the configured channels", channelID)
	}

	ch, err := gateway.NewChannel(channelID, chCfg)
	if err != nil {
		return fmt.Errorf("create %s channel: %w", chCfg.Type, err)
	}
	defer func() { _ = ch.Stop(ctx) }()

	text, ok := ch.(channel.TextChannel)
	if !ok {
		return fmt.Errorf("channel %q (%s) cannot send text messages", channelID, chCfg.Type)
	}
	if err := text.SendMessage(ctx, chatID, content); err != nil {
		return fmt.Errorf("send %s message: %w", chCfg.Type, err)
	}

	fmt.Printf("Sent message via %s channel %s to target %s\n", chCfg.Type, channelID, chatID)
	return nil
}
