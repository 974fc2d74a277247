// Package inbox supplies inbound emails to the triage pipeline: from a YAML
// fixture file, from raw RFC 5322 messages, or from a Gmail mailbox.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrEmptyMessage is returned for messages without a sender or body
var ErrEmptyMessage = errors.New("empty message")

// Message is an inbound email as read from a source
type Message struct {
	ID       string `json:"id" yaml:"id"`
	ThreadID string `json:"thread_id,omitempty" yaml:"thread_id,omitempty"`
	From     string `json:"from" yaml:"from"`
	Subject  string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Body     string `json:"body" yaml:"body"`
}

// Normalize fills a missing ID with a UUID and a missing thread ID with the
// message ID, and rejects messages without sender or body.
func (m *Message) Normalize() error {
	m.From = strings.TrimSpace(m.From)
	if m.From == "" || strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("%w: sender and body are required", ErrEmptyMessage)
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.ThreadID == "" {
		m.ThreadID = m.ID
	}
	return nil
}

// Source fetches new inbound messages
type Source interface {
	Fetch(ctx context.Context) ([]Message, error)
}

// FileSource serves a fixed list of messages loaded from YAML
type FileSource struct {
	path string
}

// NewFileSource creates a source reading the YAML file at path
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch reads and normalizes every message in the file
func (f *FileSource) Fetch(_ context.Context) ([]Message, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox file: %w", err)
	}

	var file struct {
		Messages []Message `yaml:"messages"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse inbox file: %w", err)
	}

	for i := range file.Messages {
		if err := file.Messages[i].Normalize(); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
	}

	return file.Messages, nil
}
