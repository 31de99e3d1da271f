package notify

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type countingPublisher struct {
	calls int
	err   error
}

func (c *countingPublisher) Publish(context.Context, Event) error {
	c.calls++
	return c.err
}

func TestMultiPublishesToAll(t *testing.T) {
	failing := &countingPublisher{err: errors.New("down")}
	healthy := &countingPublisher{}

	err := Multi{failing, healthy}.Publish(context.Background(), Event{})

	require.Error(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, healthy.calls, "a failing publisher must not stop the others")
}

func TestNoop(t *testing.T) {
	require.NoError(t, Noop{}.Publish(context.Background(), Event{}))
}

func TestMessageCreated(t *testing.T) {
	m := &data.Message{
		ID:             bson.NewObjectID(),
		ConversationID: bson.NewObjectID(),
		SenderID:       "a",
		ReceiverID:     "b",
		Message:        "hi",
		CreatedAt:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	ev := MessageCreated(m)

	assert.Equal(t, EventMessageCreated, ev.Type)
	assert.Equal(t, m.ID.Hex(), ev.MessageID)
	assert.Equal(t, m.ConversationID.Hex(), ev.ConversationID)
	assert.Equal(t, "b", ev.ReceiverID)
	assert.Equal(t, m.CreatedAt, ev.CreatedAt)
}

func TestRedisPublisher(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub, err := NewRedisPublisher(ctx, url, "messages.created.test")
	require.NoError(t, err)
	defer func() { _ = pub.Close() }()

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	sub := redis.NewClient(opts).Subscribe(ctx, "messages.created.test")
	defer func() { _ = sub.Close() }()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, Event{Type: EventMessageCreated, MessageID: "m1"}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "m1", got.MessageID)
}
