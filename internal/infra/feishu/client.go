package feishu

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/unred/signal-bridge/internal/logger"
)

// Client is a send-only Feishu IM client
type Client struct {
	larkCli *lark.Client
	log     *logger.Logger
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string) *Client {
	return &Client{
		larkCli: lark.NewClient(appID, appSecret),
		log:     logger.Named("feishu"),
	}
}

// SendRichText sends a rich text (post) message to a chat.
// Each inner slice of content is one paragraph of post elements.
func (c *Client) SendRichText(ctx context.Context, chatID, title string, content [][]map[string]interface{}) error {
	post := map[string]interface{}{
		"zh_cn": map[string]interface{}{
			"title":   title,
			"content": content,
		},
	}
	contentJSON, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("marshal post content: %w", err)
	}

	return c.create(ctx, chatID, larkim.MsgTypePost, string(contentJSON))
}

func (c *Client) create(ctx context.Context, chatID, msgType, content string) error {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send %s message failed: %w", msgType, err)
	}
	if !resp.Success() {
		return fmt.Errorf("send %s message error: %s", msgType, resp.Msg)
	}

	c.log.Debug().Str("chat", chatID).Str("type", msgType).Msg("message sent")
	return nil
}
