// Package notify carries message-created events to downstream consumers
// once a message has been persisted. Publishing is never on the critical
// path of a send: callers log failures and move on.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/data"
)

// EventMessageCreated is the type of the event emitted after a successful send.
const EventMessageCreated = "message.created"

// Event describes a persisted message.
type Event struct {
	Type           string    `json:"type"`
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	ReceiverID     string    `json:"receiverId"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MessageCreated builds the event for a stored message.
func MessageCreated(m *data.Message) Event {
	return Event{
		Type:           EventMessageCreated,
		MessageID:      m.ID.Hex(),
		ConversationID: m.ConversationID.Hex(),
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Message:        m.Message,
		CreatedAt:      m.CreatedAt,
	}
}

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Noop discards every event.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, Event) error { return nil }

// Multi publishes each event to all of its publishers, attempting every one
// even if an earlier one fails.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
