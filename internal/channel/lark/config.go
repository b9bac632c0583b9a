package lark

import (
	"errors"
	"fmt"

	"github.com/bytedance/gg/gconv"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/tgifai/teleworker/internal/channel"
)

type Config struct {
	AppID         string // Lark App ID (required)
	AppSecret     string // Lark App Secret (required)
	ReceiveIDType string // chat_id (default), open_id, user_id, union_id or email
	BaseURL       string // optional, e.g. https://open.larksuite.com for the global tenant
}

var receiveIDTypes = map[string]struct{}{
	larkim.ReceiveIdTypeChatId:  {},
	larkim.ReceiveIdTypeOpenId:  {},
	larkim.ReceiveIdTypeUserId:  {},
	larkim.ReceiveIdTypeUnionId: {},
	larkim.ReceiveIdTypeEmail:   {},
}

func (c *Config) Validate() error {
	if c.AppID == "" {
		return errors.New("lark app_id cannot be empty")
	}
	if c.AppSecret == "" {
		return errors.New("lark app_secret cannot be empty")
	}
	if _, ok := receiveIDTypes[c.ReceiveIDType]; !ok {
		return fmt.Errorf("unsupported lark receive_id_type %q", c.ReceiveIDType)
	}
	return nil
}

func (c *Config) GetType() channel.Type {
	return channel.Lark
}

func ParseConfig(configMap map[string]interface{}) (*Config, error) {
	config := &Config{}

	config.AppID = gconv.To[string](configMap["app_id"])
	if config.AppID == "" {
		return nil, errors.New("lark app_id is required")
	}

	config.AppSecret = gconv.To[string](configMap["app_secret"])
	if config.AppSecret == "" {
		return nil, errors.New("lark app_secret is required")
	}

	config.ReceiveIDType = gconv.To[string](configMap["receive_id_type"])
	if config.ReceiveIDType == "" {
		config.ReceiveIDType = larkim.ReceiveIdTypeChatId
	}
	config.BaseURL = gconv.To[string](configMap["base_url"])

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lark config: %w", err)
	}

	return config, nil
}
