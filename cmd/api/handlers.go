package main

import (
	"context"
	"errors"

	v1 "github.com/PaulBabatuyi/socialchat/api/chat/v1"
	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/messaging"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Register handles user registration: hashes password, stores user, returns JWT token
func (s *Server) Register(ctx context.Context, req *v1.RegisterRequest) (*v1.RegisterResponse, error) {
	sess, err := s.register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return nil, s.accountStatus("register", err)
	}
	return &v1.RegisterResponse{
		Token:     sess.token,
		UserID:    sess.user.ID.Hex(),
		ExpiresAt: sess.expiresAt,
	}, nil
}

// Login authenticates a user and returns a JWT token
func (s *Server) Login(ctx context.Context, req *v1.LoginRequest) (*v1.LoginResponse, error) {
	sess, err := s.login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.accountStatus("login", err)
	}
	return &v1.LoginResponse{
		Token:     sess.token,
		UserID:    sess.user.ID.Hex(),
		ExpiresAt: sess.expiresAt,
	}, nil
}

// SendMessage stores a message from the authenticated caller to the receiver.
func (s *Server) SendMessage(ctx context.Context, req *v1.SendMessageRequest) (*v1.SendMessageResponse, error) {
	claims, ok := getClaimsFromContext(ctx)
	if !ok {
		return nil, status.Errorf(codes.Unauthenticated, "missing auth claims")
	}

	msg, err := s.chat.Send(ctx, messaging.SendInput{
		SenderID:   claims.UserID,
		ReceiverID: req.ReceiverID,
		Text:       req.Message,
	})
	if err != nil {
		return nil, s.messagingStatus("send", err)
	}
	return &v1.SendMessageResponse{Message: toProtoMessage(msg)}, nil
}

// GetHistory returns the conversation with the requested user, oldest first.
func (s *Server) GetHistory(ctx context.Context, req *v1.GetHistoryRequest) (*v1.GetHistoryResponse, error) {
	claims, ok := getClaimsFromContext(ctx)
	if !ok {
		return nil, status.Errorf(codes.Unauthenticated, "missing auth claims")
	}

	msgs, err := s.chat.History(ctx, claims.UserID, req.WithUserID)
	if err != nil {
		return nil, s.messagingStatus("history", err)
	}
	return &v1.GetHistoryResponse{Messages: lo.Map(msgs, func(m *data.Message, _ int) *v1.Message {
		return toProtoMessage(m)
	})}, nil
}

// ListConversations returns the caller's inbox, most recent first.
func (s *Server) ListConversations(ctx context.Context, req *v1.ListConversationsRequest) (*v1.ListConversationsResponse, error) {
	claims, ok := getClaimsFromContext(ctx)
	if !ok {
		return nil, status.Errorf(codes.Unauthenticated, "missing auth claims")
	}

	convs, err := s.chat.Conversations(ctx, claims.UserID, int(req.Limit))
	if err != nil {
		return nil, s.messagingStatus("conversations", err)
	}
	return &v1.ListConversationsResponse{Conversations: lo.Map(convs, func(c *data.ConversationSummary, _ int) *v1.ConversationSummary {
		return &v1.ConversationSummary{
			ConversationID: c.ConversationID.Hex(),
			PartnerID:      c.PartnerID,
			MessageCount:   c.MessageCount,
			LastMessageAt:  c.LastMessageAt,
		}
	})}, nil
}

func toProtoMessage(m *data.Message) *v1.Message {
	return &v1.Message{
		ID:             m.ID.Hex(),
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		ConversationID: m.ConversationID.Hex(),
		Message:        m.Message,
		CreatedAt:      m.CreatedAt,
	}
}

// messagingStatus maps the messaging error taxonomy onto gRPC codes. Storage
// details never leave the server.
func (s *Server) messagingStatus(op string, err error) error {
	switch {
	case errors.Is(err, messaging.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, messaging.ErrUserNotFound):
		return status.Error(codes.NotFound, "user not found")
	default:
		s.logger.Error("messaging operation failed", zap.String("operation", op), zap.Error(err))
		return status.Error(codes.Internal, "internal server error")
	}
}

func (s *Server) accountStatus(op string, err error) error {
	switch {
	case errors.Is(err, errMissingCredentials):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, data.ErrUserExists):
		return status.Error(codes.AlreadyExists, "user already exists")
	case errors.Is(err, errInvalidCredentials):
		return status.Error(codes.Unauthenticated, err.Error())
	default:
		s.logger.Error("account operation failed", zap.String("operation", op), zap.Error(err))
		return status.Error(codes.Internal, "internal server error")
	}
}
