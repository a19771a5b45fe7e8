package chat

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// MessageStore is the only boundary to remote persistence.
type MessageStore interface {
	// FetchHistory returns the whole thread with peerID, oldest first.
	FetchHistory(ctx context.Context, peerID string) ([]ChatMessage, error)
	SendMessage(ctx context.Context, peerID, content string) error
	// MarkRead is best-effort; callers ignore its error.
	MarkRead(ctx context.Context, peerID string) error
	FetchConversations(ctx context.Context) ([]Conversation, error)
	FetchContact(ctx context.Context, peerID string) (Contact, error)
}

// TransportError is the single kind of failure reported by a MessageStore:
// the request could not be made or the response was not 2xx.
type TransportError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func IsTransport(err error) bool {
	_, ok := errors.Cause(err).(*TransportError)
	return ok
}
