package data

import (
	"context"
	"fmt"
	"strings"

	"github.com/unred/signal-bridge/internal/biz/domain"
	"github.com/unred/signal-bridge/internal/biz/repo"
)

// postSender is the part of the Feishu client the notifier needs
type postSender interface {
	SendRichText(ctx context.Context, chatID, title string, content [][]map[string]interface{}) error
}

// feishuNotifier mirrors delivered signals to a Feishu chat
type feishuNotifier struct {
	client postSender
	chatID string
}

// NewFeishuNotifier creates a notifier posting into chatID
func NewFeishuNotifier(client postSender, chatID string) repo.NotifierRepo {
	return &feishuNotifier{client: client, chatID: chatID}
}

// NotifyDelivered posts the delivered signal, one paragraph per line
func (n *feishuNotifier) NotifyDelivered(ctx context.Context, entry *domain.QueueEntry, room string) error {
	title := fmt.Sprintf("Signal delivered to %s", room)
	if room == "" {
		title = "Signal delivered"
	}
	return n.client.SendRichText(ctx, n.chatID, title, signalPost(entry))
}

func signalPost(entry *domain.QueueEntry) [][]map[string]interface{} {
	var content [][]map[string]interface{}
	for _, line := range strings.Split(entry.Text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		content = append(content, []map[string]interface{}{
			{"tag": "text", "text": line},
		})
	}
	content = append(content, []map[string]interface{}{
		{"tag": "text", "text": fmt.Sprintf("chat %d / msg %d", entry.ChatID, entry.MessageID)},
	})
	return content
}

// NotifyStale posts one line per signal stuck in the queue
func (n *feishuNotifier) NotifyStale(ctx context.Context, entries []*domain.QueueEntry) error {
	if len(entries) == 0 {
		return nil
	}
	var content [][]map[string]interface{}
	for _, e := range entries {
		content = append(content, []map[string]interface{}{
			{"tag": "text", "text": fmt.Sprintf("%s (%s) queued %s", e.Key, e.MasterHint, e.EnqueuedAt.Format("15:04:05"))},
		})
	}
	title := fmt.Sprintf("%d signal(s) waiting for delivery", len(entries))
	return n.client.SendRichText(ctx, n.chatID, title, content)
}
