package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/normalize"
)

var (
	errMissingCredentials = errors.New("email and password are required")
	errInvalidCredentials = errors.New("invalid email or password")
)

// session is a freshly issued token for an account.
type session struct {
	user      *data.User
	token     string
	expiresAt time.Time
}

// register creates the account and issues its first token. A blank username
// falls back to the email, which is already unique.
func (s *Server) register(ctx context.Context, username, email, password string) (*session, error) {
	email = normalize.Email(email)
	if email == "" || password == "" {
		return nil, errMissingCredentials
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = email
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.CreateUser(ctx, username, email, hashed)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// login checks the password and issues a token. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Server) login(ctx context.Context, email, password string) (*session, error) {
	email = normalize.Email(email)
	if email == "" || password == "" {
		return nil, errMissingCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, data.ErrUserNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPassword(user.Password, password); err != nil {
		return nil, errInvalidCredentials
	}
	return s.issue(user)
}

func (s *Server) issue(user *data.User) (*session, error) {
	token, expiresAt, err := s.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &session{user: user, token: token, expiresAt: expiresAt}, nil
}
