package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User maps to the users collection. Only the fields messaging and session
// issuance need are modelled here.
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Username  string        `bson:"username" json:"username"`
	Email     string        `bson:"email" json:"email"`
	Password  string        `bson:"password" json:"-"`
	CreatedAt time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updatedAt"`
}

// Conversation groups all messages between exactly two users.
type Conversation struct {
	ID bson.ObjectID `bson:"_id,omitempty" json:"id"`
	// PairKey is the sorted, joined participant pair; unique per conversation.
	PairKey      string          `bson:"pair_key" json:"-"`
	Participants []string        `bson:"participants" json:"participants"`
	Messages     []bson.ObjectID `bson:"messages" json:"messages"`
	CreatedAt    time.Time       `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `bson:"updated_at" json:"updatedAt"`
}

// Partner returns the participant that is not userID.
func (c *Conversation) Partner(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// Message is one immutable unit of text sent within a conversation.
type Message struct {
	ID             bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	SenderID       string        `bson:"sender_id" json:"senderId"`
	ReceiverID     string        `bson:"receiver_id" json:"receiverId"`
	ConversationID bson.ObjectID `bson:"conversation_id" json:"conversationId"`
	Message        string        `bson:"message" json:"message"`
	CreatedAt      time.Time     `bson:"created_at" json:"createdAt"`
}

// ConversationSummary is one inbox row for a user.
type ConversationSummary struct {
	ConversationID bson.ObjectID
	PartnerID      string
	MessageCount   int
	LastMessageAt  time.Time
}
