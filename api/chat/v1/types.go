// Package v1 is the chat.v1 gRPC contract: message types, the JSON wire
// codec, the service descriptor and a client.
package v1

import "time"

// RegisterRequest creates an account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GetEmail is used by the rate limiter to key by account.
func (r *RegisterRequest) GetEmail() string {
	if r == nil {
		return ""
	}
	return r.Email
}

// RegisterResponse carries the session token of the new account.
type RegisterResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LoginRequest authenticates an existing account.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GetEmail is used by the rate limiter to key by account.
func (r *LoginRequest) GetEmail() string {
	if r == nil {
		return ""
	}
	return r.Email
}

// LoginResponse carries a fresh session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Message is a stored direct message.
type Message struct {
	ID             string    `json:"id"`
	SenderID       string    `json:"senderId"`
	ReceiverID     string    `json:"receiverId"`
	ConversationID string    `json:"conversationId"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SendMessageRequest sends Message from the authenticated caller to ReceiverID.
type SendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
}

// SendMessageResponse returns the stored message.
type SendMessageResponse struct {
	Message *Message `json:"message"`
}

// GetHistoryRequest asks for the conversation between the caller and WithUserID.
type GetHistoryRequest struct {
	WithUserID string `json:"withUserId"`
}

// GetHistoryResponse lists messages oldest first; empty when none exist.
type GetHistoryResponse struct {
	Messages []*Message `json:"messages"`
}

// ListConversationsRequest asks for the caller's inbox. Zero Limit means default.
type ListConversationsRequest struct {
	Limit int32 `json:"limit"`
}

// ConversationSummary is one inbox entry.
type ConversationSummary struct {
	ConversationID string    `json:"conversationId"`
	PartnerID      string    `json:"partnerId"`
	MessageCount   int       `json:"messageCount"`
	LastMessageAt  time.Time `json:"lastMessageAt"`
}

// ListConversationsResponse lists conversations, most recent first.
type ListConversationsResponse struct {
	Conversations []*ConversationSummary `json:"conversations"`
}
