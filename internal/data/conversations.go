package data

import (
	"context"
	"errors"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/normalize"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrConversationNotFound is returned when no conversation matches.
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationsStore provides conversation database operations.
type ConversationsStore struct {
	coll *mongo.Collection
}

// NewConversationsStore returns a ConversationsStore using the given collection.
func NewConversationsStore(coll *mongo.Collection) *ConversationsStore {
	return &ConversationsStore{coll: coll}
}

// FindByPair returns the conversation of the unordered pair (a, b).
func (s *ConversationsStore) FindByPair(ctx context.Context, a, b string) (*Conversation, error) {
	var conv Conversation
	// pair_key is order-independent, so (a, b) and (b, a) hit the same document
	err := s.coll.FindOne(ctx, bson.M{"pair_key": normalize.PairKey(a, b)}).Decode(&conv)
	if err != nil {
		// Never talked: not an error for callers, they map it to "absent"
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// UpsertByPair returns the conversation of (a, b), inserting an empty one if
// none exists. created reports whether this call inserted it. The unique
// pair_key index makes concurrent first sends converge on one document: the
// loser of an upsert race gets a duplicate key error and reads the winner's.
func (s *ConversationsStore) UpsertByPair(ctx context.Context, a, b string) (*Conversation, bool, error) {
	key := normalize.PairKey(a, b)
	now := time.Now().UTC()

	// pair_key is copied into the new document from the equality filter
	update := bson.M{"$setOnInsert": bson.M{
		"participants": normalize.Pair(a, b),
		"messages":     bson.A{},
		"created_at":   now,
		"updated_at":   now,
	}}

	res, err := s.coll.UpdateOne(ctx, bson.M{"pair_key": key}, update, options.UpdateOne().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, false, err
	}
	// UpsertedCount is 1 only when this call inserted the document
	created := err == nil && res.UpsertedCount == 1

	// Re-read so both the winner and the loser of a race return the stored document
	conv, err := s.FindByPair(ctx, a, b)
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

// PushMessage appends msgID to the conversation's message list. $push is a
// single-document atomic update, so concurrent senders never lose ids.
func (s *ConversationsStore) PushMessage(ctx context.Context, convID, msgID bson.ObjectID, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": convID},
		bson.M{
			"$push": bson.M{"messages": msgID},
			"$set":  bson.M{"updated_at": at},
		},
	)
	if err != nil {
		return err
	}
	// No document matched the _id: the conversation was never created or was removed
	if res.MatchedCount == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// ListForUser returns the user's conversations, most recently active first.
func (s *ConversationsStore) ListForUser(ctx context.Context, userID string, limit int64) ([]*ConversationSummary, error) {
	userID = normalize.ID(userID)

	// Served by the (participants, updated_at) index
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "participants", Value: userID}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "updated_at", Value: -1}}}},
		bson.D{{Key: "$limit", Value: limit}},
		// only the list length is needed, not the ids themselves
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "participants", Value: 1},
			{Key: "updated_at", Value: 1},
			{Key: "message_count", Value: bson.D{{Key: "$size", Value: "$messages"}}},
		}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID           bson.ObjectID `bson:"_id"`
		Participants []string      `bson:"participants"`
		UpdatedAt    time.Time     `bson:"updated_at"`
		MessageCount int           `bson:"message_count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	out := make([]*ConversationSummary, 0, len(rows))
	for _, r := range rows {
		c := Conversation{Participants: r.Participants}
		out = append(out, &ConversationSummary{
			ConversationID: r.ID,
			PartnerID:      c.Partner(userID),
			MessageCount:   r.MessageCount,
			LastMessageAt:  r.UpdatedAt,
		})
	}
	return out, nil
}
