package data

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MessagesStore provides message database operations.
type MessagesStore struct {
	// coll is the "messages" collection; messages are never updated once inserted
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// InsertMessage stores msg and fills in its generated id.
func (m *MessagesStore) InsertMessage(ctx context.Context, msg *Message) error {
	// Assign the _id client-side so the caller can push it onto the
	// conversation inside the same transaction
	if msg.ID.IsZero() {
		msg.ID = bson.NewObjectID()
	}

	// InsertOne writes the document to the "messages" collection
	if _, err := m.coll.InsertOne(ctx, msg); err != nil {
		return err
	}
	return nil
}

// FindByIDs returns the messages with the given ids in no particular order.
// Ids with no stored message are skipped.
func (m *MessagesStore) FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]*Message, error) {
	if len(ids) == 0 {
		return []*Message{}, nil
	}

	// {_id: {$in: [...]}} fetches the whole conversation in one round trip;
	// ordering is restored by the caller from the conversation's id list
	cursor, err := m.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	// Decode every document; start non-nil so an empty result encodes as []
	messages := []*Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
