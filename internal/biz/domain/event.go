package domain

import "fmt"

// RawEvent is a message as delivered by the chat source
type RawEvent struct {
	ChatID    int64
	MessageID int64
	Text      string
}

// Key returns the queue key "<chat_id>:<message_id>"
func (e RawEvent) Key() string {
	return EntryKey(e.ChatID, e.MessageID)
}

// EntryKey builds the dedup key for a source message
func EntryKey(chatID, messageID int64) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}
