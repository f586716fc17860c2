package recorder

import (
	"context"
	"errors"
	"time"
)

// ErrConflict is returned by Save when an interaction with the same ID is
// already stored.
var ErrConflict = errors.New("interaction already exists")

// Interaction is one user message and the AI reply to it.
type Interaction struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Subject     string    `json:"subject,omitempty"`
	Provider    string    `json:"provider"`
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	WorkflowID  string    `json:"workflow_id,omitempty"`
	Action      string    `json:"action,omitempty"`
	Failed      bool      `json:"failed"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists interactions.
type Store interface {
	// Save stores one interaction. Duplicate IDs fail with ErrConflict.
	Save(ctx context.Context, it Interaction) error

	// ListBySession returns the interactions of a session, oldest first.
	// A non-empty subject restricts the result to that subject's records.
	// limit <= 0 means no limit.
	ListBySession(ctx context.Context, subject, sessionID string, limit int) ([]Interaction, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

// Recorder receives interactions. Record must not block.
type Recorder interface {
	Record(it Interaction)
}

// Discard drops every interaction.
type Discard struct{}

func (Discard) Record(Interaction) {}
