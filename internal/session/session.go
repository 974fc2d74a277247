// Package session persists triage sessions so that a workflow paused for human
// review can be resumed later, possibly by another process.
//
// Stores hold at most one session per ID. Update is an atomic
// read-modify-write used to claim a paused session; a concurrent writer makes
// the loser fail with ErrConflict instead of overwriting.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/dago-node-triage/internal/email"
)

var (
	// ErrNotFound is returned when no session exists for an ID.
	ErrNotFound = errors.New("session not found")

	// ErrExists is returned by Create when the ID is already taken.
	ErrExists = errors.New("session already exists")

	// ErrConflict is returned when a concurrent write won an Update race.
	ErrConflict = errors.New("session modified concurrently")

	// ErrInvalidID is returned for empty session IDs.
	ErrInvalidID = errors.New("invalid session id")
)

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Status is the execution status of a session
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusResuming  Status = "resuming"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
)

// Session is the persisted snapshot of one email's progress
type Session struct {
	ID        string                `json:"id"`
	Record    email.Record          `json:"record"`
	Stage     email.Stage           `json:"stage"`
	Status    Status                `json:"status"`
	Trail     []email.Stage         `json:"trail"`
	Decision  *email.ReviewDecision `json:"decision,omitempty"`
	LastError string                `json:"last_error,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
	Version   int64                 `json:"version"`
}

// Enter moves the session to stage and appends it to the trail
func (s *Session) Enter(stage email.Stage) {
	s.Stage = stage
	s.Trail = append(s.Trail, stage)
}

// Store is a keyed session store
type Store interface {
	// Create stores a new session and fails with ErrExists if the ID is taken.
	Create(ctx context.Context, s *Session) error

	// Get returns a copy of the session or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Save upserts the session.
	Save(ctx context.Context, s *Session) error

	// Update applies fn to the current session atomically and stores the
	// result. If fn returns an error nothing is written and the error is
	// returned unchanged.
	Update(ctx context.Context, id string, fn func(s *Session) error) (*Session, error)

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every stored session.
	List(ctx context.Context) ([]*Session, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// Marshal encodes a session for storage
func Marshal(s *Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a stored session
func Unmarshal(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

// touch stamps a session before it is written
func touch(s *Session) {
	now := NowFunc().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	s.Version++
}
