package main

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/messaging"
	"github.com/PaulBabatuyi/socialchat/internal/normalize"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap/zaptest"
)

// memUsers serves as both the account store and the receiver check.
type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]*data.User
	byID    map[string]*data.User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: map[string]*data.User{}, byID: map[string]*data.User{}}
}

func (m *memUsers) CreateUser(_ context.Context, username, email, hashed string) (*data.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = normalize.Email(email)
	if _, ok := m.byEmail[email]; ok {
		return nil, data.ErrUserExists
	}
	u := &data.User{ID: bson.NewObjectID(), Username: username, Email: email, Password: hashed}
	m.byEmail[email] = u
	m.byID[u.ID.Hex()] = u
	return u, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*data.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[normalize.Email(email)]
	if !ok {
		return nil, data.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) UserExists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byID[normalize.ID(id)]
	return ok, nil
}

type memConversations struct {
	mu    sync.Mutex
	byKey map[string]*data.Conversation
	byID  map[bson.ObjectID]*data.Conversation
	err   error
}

func newMemConversations() *memConversations {
	return &memConversations{byKey: map[string]*data.Conversation{}, byID: map[bson.ObjectID]*data.Conversation{}}
}

func (m *memConversations) FindByPair(_ context.Context, a, b string) (*data.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.byKey[normalize.PairKey(a, b)]
	if !ok {
		return nil, data.ErrConversationNotFound
	}
	cp := *c
	cp.Messages = append([]bson.ObjectID(nil), c.Messages...)
	return &cp, nil
}

func (m *memConversations) UpsertByPair(_ context.Context, a, b string) (*data.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	key := normalize.PairKey(a, b)
	created := false
	c, ok := m.byKey[key]
	if !ok {
		now := time.Now().UTC()
		c = &data.Conversation{ID: bson.NewObjectID(), PairKey: key, Participants: normalize.Pair(a, b), Messages: []bson.ObjectID{}, CreatedAt: now, UpdatedAt: now}
		m.byKey[key] = c
		m.byID[c.ID] = c
		created = true
	}
	cp := *c
	cp.Messages = append([]bson.ObjectID(nil), c.Messages...)
	return &cp, created, nil
}

func (m *memConversations) PushMessage(_ context.Context, convID, msgID bson.ObjectID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	if m.err != nil {
		return nil, m.err
	}
	out := []*data.ConversationSummary{}
	for _, c := range m.byID {
		if c.Participants[0] != userID && c.Participants[1] != userID {
			continue
		}
		out = append(out, &data.ConversationSummary{
			ConversationID: c.ID,
			PartnerID:      c.Partner(userID),
			MessageCount:   len(c.Messages),
			LastMessageAt:  c.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memMessages struct {
	mu   sync.Mutex
	byID map[bson.ObjectID]*data.Message
}

func (m *memMessages) InsertMessage(_ context.Context, msg *data.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byID == nil {
		m.byID = map[bson.ObjectID]*data.Message{}
	}
	cp := *msg
	m.byID[msg.ID] = &cp
	return nil
}

func (m *memMessages) FindByIDs(_ context.Context, ids []bson.ObjectID) ([]*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*data.Message{}
	for _, id := range ids {
		if msg, ok := m.byID[id]; ok {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

// testEnv is a Server backed entirely by in-memory stores.
type testEnv struct {
	srv   *Server
	users *memUsers
	convs *memConversations
	jwt   *auth.JWTManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zaptest.NewLogger(t)
	users := newMemUsers()
	convs := newMemConversations()
	msgs := &memMessages{}
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)

	chat := messaging.NewService(
		messaging.NewDirectory(convs, nil, log),
		messaging.NewLog(msgs, convs, nil),
		users, nil, nil, log,
	)
	return &testEnv{
		srv:   newServer(users, chat, jwtMgr, nil, log),
		users: users,
		convs: convs,
		jwt:   jwtMgr,
	}
}

// signUp registers an account and returns its id and claims.
func (e *testEnv) signUp(t *testing.T, email string) (string, *auth.Claims) {
	t.Helper()
	sess, err := e.srv.register(context.Background(), "", email, "pw-"+email)
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	claims, err := e.jwt.VerifyToken(sess.token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	return sess.user.ID.Hex(), claims
}
