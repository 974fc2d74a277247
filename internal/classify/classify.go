// Package classify turns raw email text into a structured classification.
//
// Two classifiers are provided: a keyword classifier that needs no external
// service, and an LLM classifier that renders a prompt and parses a JSON answer.
// Both must return one of the fixed intents and urgencies or fail.
package classify

import (
	"context"

	"github.com/aescanero/dago-node-triage/internal/email"
)

// Classifier classifies raw email content
type Classifier interface {
	Classify(ctx context.Context, content string) (email.Classification, error)
}

// Func adapts an ordinary function to the Classifier interface
type Func func(ctx context.Context, content string) (email.Classification, error)

// Classify calls f(ctx, content)
func (f Func) Classify(ctx context.Context, content string) (email.Classification, error) {
	return f(ctx, content)
}
