// Package messaging implements direct messages between two users: the
// conversation directory that maps a participant pair to its single
// conversation, and the append-only message log of each conversation.
package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/metrics"
	"github.com/PaulBabatuyi/socialchat/internal/normalize"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// ConversationStore is the persistence the directory and log need for conversations.
type ConversationStore interface {
	FindByPair(ctx context.Context, a, b string) (*data.Conversation, error)
	UpsertByPair(ctx context.Context, a, b string) (*data.Conversation, bool, error)
	PushMessage(ctx context.Context, convID, msgID bson.ObjectID, at time.Time) error
	ListForUser(ctx context.Context, userID string, limit int64) ([]*data.ConversationSummary, error)
}

// Directory resolves an unordered pair of users to their conversation.
type Directory struct {
	conversations ConversationStore
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewDirectory returns a Directory backed by store. m and logger may be nil.
func NewDirectory(store ConversationStore, m *metrics.Metrics, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{conversations: store, metrics: m, logger: logger}
}

// ResolveOrCreate returns the conversation between a and b, creating an
// empty one on first contact. The argument order does not matter.
func (d *Directory) ResolveOrCreate(ctx context.Context, a, b string) (*data.Conversation, error) {
	a, b, err := validatePair(a, b)
	if err != nil {
		return nil, err
	}

	conv, created, err := d.conversations.UpsertByPair(ctx, a, b)
	if err != nil {
		return nil, persistenceError("resolve conversation", err)
	}
	if created {
		d.metrics.ConversationCreated()
		d.logger.Debug("conversation created",
			zap.String("conversation_id", conv.ID.Hex()),
			zap.Strings("participants", conv.Participants),
		)
	}
	return conv, nil
}

// Lookup returns the conversation between a and b, or nil if they have
// never exchanged a message. It never creates anything. A user paired with
// themselves can have no conversation, so that pair is also nil.
func (d *Directory) Lookup(ctx context.Context, a, b string) (*data.Conversation, error) {
	a, b, err := validatePair(a, b)
	if errors.Is(err, ErrSelfConversation) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	conv, err := d.conversations.FindByPair(ctx, a, b)
	if errors.Is(err, data.ErrConversationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("lookup conversation", err)
	}
	return conv, nil
}

func validatePair(a, b string) (string, string, error) {
	a, b = normalize.ID(a), normalize.ID(b)
	if a == "" || b == "" {
		return "", "", ErrMissingParticipant
	}
	if a == b {
		return "", "", ErrSelfConversation
	}
	return a, b, nil
}
