// Package send defines the interface for reply delivery backends.
package send

import "context"

// Message is an outgoing reply
type Message struct {
	To        string
	Subject   string
	Body      string
	InReplyTo string
}

// Sender is the interface that delivery backends must implement.
// Send is invoked once per attempt; callers decide whether to retry.
type Sender interface {
	// Send delivers a reply through this backend.
	Send(ctx context.Context, msg *Message) error

	// Name returns the human-readable name of this backend.
	Name() string
}
