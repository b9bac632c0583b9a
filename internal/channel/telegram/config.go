package telegram

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/gg/gconv"

	"github.com/tgifai/teleworker/internal/channel"
)

type Config struct {
	Token     string // Telegram Bot Token
	ServerURL string // optional self-hosted Bot API server
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("telegram bot token cannot be empty")
	}
	c.ServerURL = strings.TrimRight(strings.TrimSpace(c.ServerURL), "/")
	return nil
}

func (c *Config) GetType() channel.Type {
	return channel.Telegram
}

func ParseConfig(configMap map[string]interface{}) (*Config, error) {
	config := &Config{}

	token := strings.TrimSpace(gconv.To[string](configMap["token"]))
	if token == "" {
		return nil, errors.New("telegram token is required")
	}
	config.Token = token
	config.ServerURL = gconv.To[string](configMap["server_url"])

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telegram config: %w", err)
	}

	return config, nil
}
