package messaging

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/normalize"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// memConversations is an in-memory ConversationStore keyed like the real
// pair_key unique index.
type memConversations struct {
	mu      sync.Mutex
	byKey   map[string]*data.Conversation
	byID    map[bson.ObjectID]*data.Conversation
	pushErr error
	findErr error
	upserts int
}

func newMemConversations() *memConversations {
	return &memConversations{
		byKey: map[string]*data.Conversation{},
		byID:  map[bson.ObjectID]*data.Conversation{},
	}
}

func copyConversation(c *data.Conversation) *data.Conversation {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	cp.Messages = append([]bson.ObjectID(nil), c.Messages...)
	return &cp
}

func (m *memConversations) FindByPair(_ context.Context, a, b string) (*data.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.byKey[normalize.PairKey(a, b)]
	if !ok {
		return nil, data.ErrConversationNotFound
	}
	return copyConversation(c), nil
}

func (m *memConversations) UpsertByPair(_ context.Context, a, b string) (*data.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	key := normalize.PairKey(a, b)
	if c, ok := m.byKey[key]; ok {
		return copyConversation(c), false, nil
	}
	now := time.Now().UTC()
	c := &data.Conversation{
		ID:           bson.NewObjectID(),
		PairKey:      key,
		Participants: normalize.Pair(a, b),
		Messages:     []bson.ObjectID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byKey[key] = c
	m.byID[c.ID] = c
	return copyConversation(c), true, nil
}

func (m *memConversations) PushMessage(_ context.Context, convID, msgID bson.ObjectID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pushErr != nil {
		return m.pushErr
	}
	c, ok := m.byID[convID]
	if !ok {
		return data.ErrConversationNotFound
	}
	c.Messages = append(c.Messages, msgID)
	c.UpdatedAt = at
	return nil
}

func (m *memConversations) ListForUser(_ context.Context, userID string, limit int64) ([]*data.ConversationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*data.ConversationSummary
	for _, c := range m.byID {
		for _, p := range c.Participants {
			if p == userID {
				out = append(out, &data.ConversationSummary{
					ConversationID: c.ID,
					PartnerID:      c.Partner(userID),
					MessageCount:   len(c.Messages),
					LastMessageAt:  c.UpdatedAt,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// stored returns the persisted copy of a conversation.
func (m *memConversations) stored(id bson.ObjectID) *data.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyConversation(m.byID[id])
}

type memMessages struct {
	mu        sync.Mutex
	byID      map[bson.ObjectID]*data.Message
	insertErr error
	findErr   error
}

func newMemMessages() *memMessages {
	return &memMessages{byID: map[bson.ObjectID]*data.Message{}}
}

func (m *memMessages) InsertMessage(_ context.Context, msg *data.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	cp := *msg
	m.byID[msg.ID] = &cp
	return nil
}

func (m *memMessages) FindByIDs(_ context.Context, ids []bson.ObjectID) ([]*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	out := []*data.Message{}
	// reverse order on purpose: callers must not rely on store order
	for i := len(ids) - 1; i >= 0; i-- {
		if msg, ok := m.byID[ids[i]]; ok {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memMessages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type fakeUsers map[string]bool

func (f fakeUsers) UserExists(_ context.Context, id string) (bool, error) {
	return f[id], nil
}

// recordingTx counts transactions and runs fn directly.
type recordingTx struct{ calls int }

func (r *recordingTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	r.calls++
	return fn(ctx)
}
