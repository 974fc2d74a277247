// Package stdout implements a Sender that prints replies to standard output.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aescanero/dago-node-triage/internal/send"
)

const separator = "========================================\n"

// Sender prints replies in a human-readable format.
type Sender struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
	from   string
}

// New creates a new stdout Sender that writes to os.Stdout.
func New(from string) *Sender {
	return &Sender{writer: os.Stdout, from: from}
}

// NewWithWriter creates a new stdout Sender that writes to the given writer.
func NewWithWriter(w io.Writer, from string) *Sender {
	return &Sender{writer: w, from: from}
}

// Send prints the reply. Write failures are returned so a send can be retried.
func (s *Sender) Send(ctx context.Context, msg *send.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder

	b.WriteString(separator)
	if s.from != "" {
		b.WriteString(fmt.Sprintf("From: %s\n", s.from))
	}
	b.WriteString(fmt.Sprintf("To: %s\n", msg.To))
	b.WriteString(fmt.Sprintf("Subject: %s\n", msg.Subject))
	if msg.InReplyTo != "" {
		b.WriteString(fmt.Sprintf("In-Reply-To: %s\n", msg.InReplyTo))
	}
	b.WriteString("Body:\n")
	b.WriteString(strings.TrimRight(msg.Body, "\n") + "\n")
	b.WriteString(separator)

	if _, err := fmt.Fprint(s.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write reply: %w", err)
	}

	return nil
}

// Name returns the sender name.
func (s *Sender) Name() string {
	return "stdout"
}
