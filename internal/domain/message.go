package domain

import (
	"context"
	"time"
)

const (
	// DefaultUsername replaces an empty display name.
	DefaultUsername = "Anonimo"
	// DefaultText replaces an empty message body.
	DefaultText = "Nessun testo"
)

// Message is the canonical, persisted chat message. It is the only shape
// the relay ever sends to clients.
type Message struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

// InboundMessage is the untrusted payload a client sends over its connection.
type InboundMessage struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

// Normalize returns a copy with the placeholders applied to empty fields.
func (m InboundMessage) Normalize() InboundMessage {
	if m.Username == "" {
		m.Username = DefaultUsername
	}
	if m.Text == "" {
		m.Text = DefaultText
	}
	return m
}

// MessageStore defines the contract for durable message persistence.
// It lives in the domain because it's a requirement OF the relay, not
// of a particular database.
type MessageStore interface {
	// AppendMessage persists a message and returns the canonical record with
	// its store-assigned ID and CreatedAt.
	AppendMessage(ctx context.Context, username, text, color string) (*Message, error)
	// FindLatestByAuthor returns the most recent message by username, or
	// (nil, nil) if the author has never posted.
	FindLatestByAuthor(ctx context.Context, username string) (*Message, error)
	// ListAllOrderedByTime returns every message, oldest first.
	ListAllOrderedByTime(ctx context.Context) ([]*Message, error)
	// Close releases the underlying connection or files.
	Close() error
}
