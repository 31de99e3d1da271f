package main

import (
	"context"

	v1 "github.com/PaulBabatuyi/socialchat/api/chat/v1"
	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/messaging"
	"github.com/PaulBabatuyi/socialchat/internal/metrics"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// accountStore is the subset of data.UsersStore used for registration and login.
type accountStore interface {
	CreateUser(ctx context.Context, username, email, hashedPassword string) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
}

// Server implements the chat service on both the gRPC and HTTP surfaces.
type Server struct {
	v1.UnimplementedChatServiceServer

	users   accountStore
	chat    *messaging.Service
	auth    *auth.JWTManager
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// newServer returns a ready-to-use Server wired with stores, messaging and auth.
func newServer(users accountStore, chat *messaging.Service, authMgr *auth.JWTManager, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{users: users, chat: chat, auth: authMgr, metrics: m, logger: logger}
}

// registerService registers the ChatService on the given gRPC server.
func registerService(s *grpc.Server, srv *Server) {
	v1.RegisterChatServiceServer(s, srv)
}
