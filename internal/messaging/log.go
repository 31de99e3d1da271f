package messaging

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/normalize"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// MessageStore is the persistence the log needs for messages.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *data.Message) error
	FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]*data.Message, error)
}

// Transactor runs fn atomically. The context passed to fn must be used for
// every store call that should join the transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// direct runs fn without a transaction.
type direct struct{}

func (direct) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Log appends messages to conversations and reads them back in send order.
type Log struct {
	messages      MessageStore
	conversations ConversationStore
	tx            Transactor
	now           func() time.Time
}

// NewLog returns a Log. A nil tx performs the two writes of Append without a
// transaction.
func NewLog(messages MessageStore, conversations ConversationStore, tx Transactor) *Log {
	if tx == nil {
		tx = direct{}
	}
	return &Log{
		messages:      messages,
		conversations: conversations,
		tx:            tx,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Append stores a message from senderID to receiverID in conv and appends
// its id to the conversation. On success the message id is the last entry
// of conv.Messages.
func (l *Log) Append(ctx context.Context, conv *data.Conversation, senderID, receiverID, text string) (*data.Message, error) {
	if conv == nil {
		return nil, fmt.Errorf("%w: conversation is required", ErrValidation)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	senderID, receiverID, err := validatePair(senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(normalize.Pair(senderID, receiverID), conv.Participants) {
		return nil, ErrNotParticipant
	}

	msg := &data.Message{
		ID:             bson.NewObjectID(),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		ConversationID: conv.ID,
		Message:        text,
		CreatedAt:      l.now(),
	}

	err = l.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := l.messages.InsertMessage(ctx, msg); err != nil {
			return persistenceError("insert message", err)
		}
		if err := l.conversations.PushMessage(ctx, conv.ID, msg.ID, msg.CreatedAt); err != nil {
			return persistenceError("append message to conversation", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	conv.Messages = append(conv.Messages, msg.ID)
	conv.UpdatedAt = msg.CreatedAt
	return msg, nil
}

// History returns every message of conv, oldest first. Order follows the
// conversation's id list, so a message whose append never completed is not
// returned. A nil conv yields an empty slice.
func (l *Log) History(ctx context.Context, conv *data.Conversation) ([]*data.Message, error) {
	if conv == nil || len(conv.Messages) == 0 {
		return []*data.Message{}, nil
	}

	found, err := l.messages.FindByIDs(ctx, conv.Messages)
	if err != nil {
		return nil, persistenceError("load messages", err)
	}

	byID := make(map[bson.ObjectID]*data.Message, len(found))
	for _, m := range found {
		byID[m.ID] = m
	}

	out := make([]*data.Message, 0, len(conv.Messages))
	for _, id := range conv.Messages {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}
