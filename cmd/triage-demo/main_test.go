package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-triage/internal/app"
	"github.com/aescanero/dago-node-triage/internal/config"
	"github.com/aescanero/dago-node-triage/internal/email"
	"github.com/aescanero/dago-node-triage/internal/inbox"
	"github.com/aescanero/dago-node-triage/internal/triage"
)

func TestPromptDecider(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected email.ReviewDecision
	}{
		{name: "approve", input: "a\n", expected: email.ReviewDecision{Approved: true}},
		{name: "reject", input: "reject\n", expected: email.ReviewDecision{Approved: false}},
		{name: "reprompt", input: "maybe\nA\n", expected: email.ReviewDecision{Approved: true}},
		{
			name:     "edit",
			input:    "e\nRefund issued.\nSorry!\n.\n",
			expected: email.ReviewDecision{Approved: true, EditedResponse: "Refund issued.\nSorry!\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			d := newPromptDecider(strings.NewReader(tt.input), &out)

			got, err := d.Decide(&triage.Outcome{Draft: "Hello\n"})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Contains(t, out.String(), "  Hello")
		})
	}
}

func TestPromptDecider_EOF(t *testing.T) {
	d := newPromptDecider(strings.NewReader(""), &bytes.Buffer{})

	_, err := d.Decide(&triage.Outcome{Draft: "Hello\n"})
	assert.Error(t, err)
}

func TestTriageOne(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "memory")
	t.Setenv("RETRY_BASE_DELAY", "0s")
	cfg, err := config.Load()
	require.NoError(t, err)

	ctx := context.Background()
	wf, err := app.NewWorkflow(ctx, cfg, app.NewSessionStore(cfg, nil, zap.NewNop()), zap.NewNop())
	require.NoError(t, err)

	var out bytes.Buffer
	err = triageOne(ctx, wf, inbox.Message{
		ID:   "m-1",
		From: "customer@example.com",
		Body: "I was charged twice!",
	}, autoDecider{}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "intent=billing urgency=high")
	assert.Contains(t, out.String(), "path: read -> classify -> review -> send -> done")
}
