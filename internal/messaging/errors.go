package messaging

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before anything is persisted.
	ErrValidation = errors.New("validation failed")
	// ErrEmptyMessage is returned for missing or blank message text.
	ErrEmptyMessage = fmt.Errorf("%w: message text is required", ErrValidation)
	// ErrSelfConversation is returned when sender and receiver are the same user.
	ErrSelfConversation = fmt.Errorf("%w: cannot message yourself", ErrValidation)
	// ErrMissingParticipant is returned when a participant id is blank.
	ErrMissingParticipant = fmt.Errorf("%w: participant id is required", ErrValidation)
	// ErrNotParticipant is returned when appending on behalf of a user outside the conversation.
	ErrNotParticipant = fmt.Errorf("%w: user is not a participant of the conversation", ErrValidation)

	// ErrUserNotFound is returned when the receiver of a send does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrPersistence wraps every storage failure.
	ErrPersistence = errors.New("persistence failure")
)

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
