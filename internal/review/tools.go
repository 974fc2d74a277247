package review

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aescanero/dago-node-triage/internal/email"
	"github.com/aescanero/dago-node-triage/internal/session"
	"github.com/aescanero/dago-node-triage/internal/triage"
)

// Tools implements the review tool handlers
type Tools struct {
	wf workflow
}

type ListPendingRequest struct{}

type PendingSession struct {
	SessionID string        `json:"session_id" jsonschema:"session identifier to pass to resume_session"`
	Sender    string        `json:"sender" jsonschema:"address the reply goes to"`
	Subject   string        `json:"subject,omitempty" jsonschema:"original subject"`
	Intent    email.Intent  `json:"intent,omitempty" jsonschema:"classified intent, empty when classification failed"`
	Urgency   email.Urgency `json:"urgency,omitempty" jsonschema:"classified urgency, empty when classification failed"`
	Draft     string        `json:"draft" jsonschema:"draft reply awaiting approval"`
	LastError string        `json:"last_error,omitempty" jsonschema:"error that escalated the session, if any"`
	PausedAt  string        `json:"paused_at" jsonschema:"RFC 3339 time the session paused"`
}

type ListPendingResponse struct {
	Sessions []PendingSession `json:"sessions" jsonschema:"sessions waiting for a decision, oldest first"`
	Total    int              `json:"total" jsonschema:"number of sessions returned"`
}

func (t *Tools) ListPending(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListPendingRequest,
) (*mcp.CallToolResult, ListPendingResponse, error) {
	pending, err := t.wf.Pending(ctx)
	if err != nil {
		return nil, ListPendingResponse{}, fmt.Errorf("wf.Pending failed: %w", err)
	}

	out := make([]PendingSession, 0, len(pending))
	for _, s := range pending {
		p := PendingSession{
			SessionID: s.ID,
			Sender:    s.Record.SenderEmail,
			Subject:   s.Record.Subject,
			Draft:     s.Record.DraftResponse,
			LastError: s.LastError,
			PausedAt:  s.UpdatedAt.Format(time.RFC3339),
		}
		if c := s.Record.Classification; c != nil {
			p.Intent = c.Intent
			p.Urgency = c.Urgency
		}
		out = append(out, p)
	}

	return nil, ListPendingResponse{Sessions: out, Total: len(out)}, nil
}

type GetSessionRequest struct {
	SessionID string `json:"session_id" jsonschema:"the session identifier"`
}

type SessionView struct {
	SessionID      string                `json:"session_id"`
	Stage          email.Stage           `json:"stage"`
	Status         session.Status        `json:"status"`
	Trail          []email.Stage         `json:"trail"`
	Sender         string                `json:"sender"`
	Subject        string                `json:"subject,omitempty"`
	Content        string                `json:"content"`
	Classification *email.Classification `json:"classification,omitempty"`
	SearchResults  []string              `json:"search_results,omitempty"`
	TicketInfo     string                `json:"ticket_info,omitempty"`
	Draft          string                `json:"draft,omitempty"`
	Messages       []string              `json:"messages" jsonschema:"processing log"`
	LastError      string                `json:"last_error,omitempty"`
}

func (t *Tools) GetSession(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetSessionRequest,
) (*mcp.CallToolResult, SessionView, error) {
	s, err := t.wf.Session(ctx, input.SessionID)
	if err != nil {
		return nil, SessionView{}, err
	}

	return nil, SessionView{
		SessionID:      s.ID,
		Stage:          s.Stage,
		Status:         s.Status,
		Trail:          s.Trail,
		Sender:         s.Record.SenderEmail,
		Subject:        s.Record.Subject,
		Content:        s.Record.EmailContent,
		Classification: s.Record.Classification,
		SearchResults:  s.Record.SearchResults,
		TicketInfo:     s.Record.TicketInfo,
		Draft:          s.Record.DraftResponse,
		Messages:       s.Record.Messages,
		LastError:      s.LastError,
	}, nil
}

type ResumeSessionRequest struct {
	SessionID      string `json:"session_id" jsonschema:"the paused session identifier"`
	Approved       bool   `json:"approved" jsonschema:"true to send the reply, false to close without sending"`
	EditedResponse string `json:"edited_response,omitempty" jsonschema:"replacement reply body; the draft is sent when empty"`
}

func (t *Tools) ResumeSession(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResumeSessionRequest,
) (*mcp.CallToolResult, triage.Outcome, error) {
	out, err := t.wf.Resume(ctx, input.SessionID, email.ReviewDecision{
		Approved:       input.Approved,
		EditedResponse: input.EditedResponse,
	})
	if err != nil {
		return nil, triage.Outcome{}, err
	}

	return nil, *out, nil
}

type RetrySendRequest struct {
	SessionID string `json:"session_id" jsonschema:"the session whose send failed"`
}

func (t *Tools) RetrySend(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrySendRequest,
) (*mcp.CallToolResult, triage.Outcome, error) {
	out, err := t.wf.RetrySend(ctx, input.SessionID)
	if err != nil {
		return nil, triage.Outcome{}, err
	}

	return nil, *out, nil
}
