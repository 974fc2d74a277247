// Package ticket files bug tickets in an issue tracker.
package ticket

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/aescanero/dago-node-triage/internal/email"
)

// Priority is the tracker priority of a ticket
type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
	PriorityP4 Priority = "P4"
)

// PriorityFor maps an email urgency to a tracker priority
func PriorityFor(u email.Urgency) Priority {
	switch u {
	case email.UrgencyCritical:
		return PriorityP1
	case email.UrgencyHigh:
		return PriorityP2
	case email.UrgencyMedium:
		return PriorityP3
	default:
		return PriorityP4
	}
}

// Tracker creates tickets and returns their identifiers
type Tracker interface {
	Create(ctx context.Context, topic, description string, priority Priority) (string, error)
}

// Func adapts an ordinary function to the Tracker interface
type Func func(ctx context.Context, topic, description string, priority Priority) (string, error)

// Create calls f(ctx, topic, description, priority)
func (f Func) Create(ctx context.Context, topic, description string, priority Priority) (string, error) {
	return f(ctx, topic, description, priority)
}

// Ticket is a ticket held by the memory tracker
type Ticket struct {
	ID          string
	Topic       string
	Description string
	Priority    Priority
}

// MemoryTracker keeps tickets in memory
type MemoryTracker struct {
	mu      sync.RWMutex
	tickets map[string]*Ticket
	newID   func() string
}

// NewMemoryTracker creates an in-memory tracker issuing BUG-XXXXXXXX identifiers
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		tickets: make(map[string]*Ticket),
		newID: func() string {
			return "BUG-" + strings.ToUpper(uuid.New().String()[:8])
		},
	}
}

// Create records a new ticket
func (m *MemoryTracker) Create(ctx context.Context, topic, description string, priority Priority) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(topic) == "" {
		return "", fmt.Errorf("ticket topic is required")
	}

	t := &Ticket{
		ID:          m.newID(),
		Topic:       topic,
		Description: description,
		Priority:    priority,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.ID] = t

	return t.ID, nil
}

// Get returns a ticket by identifier
func (m *MemoryTracker) Get(id string) (*Ticket, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tickets[id]
	return t, ok
}

// Len returns the number of tickets created
func (m *MemoryTracker) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tickets)
}
