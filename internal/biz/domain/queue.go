package domain

import "time"

// QueueEntry is a canonical signal waiting for delivery
type QueueEntry struct {
	Key        string
	ChatID     int64
	MessageID  int64
	MasterHint string
	RoomHint   string
	EnqueuedAt time.Time
	Text       string
}

// Route returns the routing hints carried by the entry
func (e *QueueEntry) Route() Route {
	return Route{MasterHint: e.MasterHint, RoomHint: e.RoomHint}
}

// RemoveRequest selects a queue entry for acknowledgement.
// Key wins when set, otherwise ChatID and MessageID must both match.
type RemoveRequest struct {
	ChatID    *int64
	MessageID *int64
	Key       string
}

// Matches reports whether the entry is selected by the request
func (r RemoveRequest) Matches(e *QueueEntry) bool {
	if r.Key != "" {
		return e.Key == r.Key
	}
	if r.ChatID == nil || r.MessageID == nil {
		return false
	}
	return e.ChatID == *r.ChatID && e.MessageID == *r.MessageID
}
