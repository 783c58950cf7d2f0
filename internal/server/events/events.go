// Package events publishes audit events about reset codes and credential
// changes. Publishing is best-effort: callers log failures and carry on.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	CodeIssued           = "code.issued"
	CodeConsumed         = "code.consumed"
	CodeRevoked          = "code.revoked"
	CodesSwept           = "codes.swept"
	PasswordReset        = "password.reset"
	FirstAccessCompleted = "first_access.completed"
)

// Event is one audit record. Attributes never carry secrets or raw codes.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurredAt"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// New builds an event with a fresh ID.
func New(eventType string, at time.Time, attrs map[string]string) Event {
	return Event{ID: uuid.NewString(), Type: eventType, OccurredAt: at.UTC(), Attributes: attrs}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
