package messaging

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/metrics"
	"github.com/PaulBabatuyi/socialchat/internal/normalize"
	"github.com/PaulBabatuyi/socialchat/internal/notify"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	defaultInboxLimit = 50
	maxInboxLimit     = 100
	publishTimeout    = 3 * time.Second
)

// UserChecker reports whether a user id refers to a registered user.
type UserChecker interface {
	UserExists(ctx context.Context, id string) (bool, error)
}

// SendInput is one outbound message. SenderID is the authenticated caller.
type SendInput struct {
	SenderID   string `validate:"required"`
	ReceiverID string `validate:"required,nefield=SenderID"`
	Text       string `validate:"required"`
}

// Service is the messaging entry point used by the transports.
type Service struct {
	dir      *Directory
	log      *Log
	users    UserChecker
	pub      notify.Publisher
	metrics  *metrics.Metrics
	logger   *zap.Logger
	validate *validator.Validate
}

// NewService wires the directory and log. users may be nil to skip the
// receiver existence check; pub may be nil to disable notifications.
func NewService(dir *Directory, log *Log, users UserChecker, pub notify.Publisher, m *metrics.Metrics, logger *zap.Logger) *Service {
	if pub == nil {
		pub = notify.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		dir:      dir,
		log:      log,
		users:    users,
		pub:      pub,
		metrics:  m,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Send resolves (or creates) the conversation between sender and receiver,
// appends the message and then publishes a message.created event. A failed
// publish is logged and does not fail the send.
func (s *Service) Send(ctx context.Context, in SendInput) (msg *data.Message, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("send", start, err) }()

	in.SenderID = normalize.ID(in.SenderID)
	in.ReceiverID = normalize.ID(in.ReceiverID)
	if err := s.validateSend(in); err != nil {
		return nil, err
	}

	if s.users != nil {
		exists, err := s.users.UserExists(ctx, in.ReceiverID)
		if err != nil {
			return nil, persistenceError("verify receiver", err)
		}
		if !exists {
			return nil, ErrUserNotFound
		}
	}

	conv, err := s.dir.ResolveOrCreate(ctx, in.SenderID, in.ReceiverID)
	if err != nil {
		return nil, err
	}

	msg, err = s.log.Append(ctx, conv, in.SenderID, in.ReceiverID, in.Text)
	if err != nil {
		return nil, err
	}
	s.metrics.MessageSent()

	s.publish(ctx, msg)
	return msg, nil
}

// History returns the messages exchanged between callerID and otherID,
// oldest first. A pair that never talked yields an empty slice.
func (s *Service) History(ctx context.Context, callerID, otherID string) (msgs []*data.Message, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("history", start, err) }()

	conv, err := s.dir.Lookup(ctx, callerID, otherID)
	if err != nil {
		return nil, err
	}
	return s.log.History(ctx, conv)
}

// Conversations lists the caller's conversations, most recent first.
func (s *Service) Conversations(ctx context.Context, callerID string, limit int) (out []*data.ConversationSummary, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("conversations", start, err) }()

	callerID = normalize.ID(callerID)
	if callerID == "" {
		return nil, ErrMissingParticipant
	}
	switch {
	case limit <= 0:
		limit = defaultInboxLimit
	case limit > maxInboxLimit:
		limit = maxInboxLimit
	}

	out, err = s.dir.conversations.ListForUser(ctx, callerID, int64(limit))
	if err != nil {
		return nil, persistenceError("list conversations", err)
	}
	return out, nil
}

func (s *Service) validateSend(in SendInput) error {
	in.Text = strings.TrimSpace(in.Text)

	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ErrValidation
	}
	switch fe := verrs[0]; {
	case fe.Field() == "Text":
		return ErrEmptyMessage
	case fe.Tag() == "nefield":
		return ErrSelfConversation
	default:
		return ErrMissingParticipant
	}
}

func (s *Service) publish(ctx context.Context, msg *data.Message) {
	// the send already succeeded; a cancelled request must not abort the event
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.pub.Publish(pubCtx, notify.MessageCreated(msg)); err != nil {
		s.metrics.PublishFailed()
		s.logger.Warn("publish message.created failed",
			zap.String("message_id", msg.ID.Hex()),
			zap.String("conversation_id", msg.ConversationID.Hex()),
			zap.Error(err),
		)
	}
}
