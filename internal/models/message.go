package models

import "time"

// Message is one durably stored chat message. Sender username is
// denormalized at append time so delivery never needs a second lookup.
// Messages are immutable once created.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	SenderID  int64     `json:"user_id"`
	Sender    string    `json:"username"`
	Content   string    `json:"message"`
	CreatedAt time.Time `json:"timestamp"`
}
