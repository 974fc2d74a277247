package email

import (
	"fmt"
	"strings"
)

// Stage is a position in the per-email processing pipeline
type Stage string

const (
	StageRead     Stage = "read"
	StageClassify Stage = "classify"
	StageSearch   Stage = "search"
	StageTicket   Stage = "ticket"
	StageDraft    Stage = "draft"
	StageReview   Stage = "review"
	StageSend     Stage = "send"
	StageDone     Stage = "done"
)

// FormatTrail renders visited stages as "read -> classify -> ..."
func FormatTrail(stages []Stage) string {
	parts := make([]string, len(stages))
	for i, st := range stages {
		parts[i] = string(st)
	}
	return strings.Join(parts, " -> ")
}

// Record accumulates everything known about one inbound email
type Record struct {
	EmailID        string          `json:"email_id"`
	ThreadID       string          `json:"thread_id,omitempty"`
	SenderEmail    string          `json:"sender_email"`
	Subject        string          `json:"subject,omitempty"`
	EmailContent   string          `json:"email_content"`
	Classification *Classification `json:"classification,omitempty"`
	SearchResults  []string        `json:"search_results,omitempty"`
	TicketInfo     string          `json:"ticket_info,omitempty"`
	DraftResponse  string          `json:"draft_response,omitempty"`
	Messages       []string        `json:"messages"`
}

// Logf appends a formatted entry to the processing log.
func (r *Record) Logf(format string, args ...interface{}) {
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

// ReplySubject returns the subject used for the outgoing reply.
func (r *Record) ReplySubject() string {
	switch {
	case r.Subject != "":
		return "Re: " + r.Subject
	case r.Classification != nil && r.Classification.Topic != "":
		return "Re: " + r.Classification.Topic
	default:
		return "Re: your email"
	}
}

// ReviewDecision is the human input supplied to resume a paused session.
// A blank EditedResponse means the original draft is sent as is.
type ReviewDecision struct {
	Approved       bool   `json:"approved"`
	EditedResponse string `json:"edited_response,omitempty"`
}

// Body returns the reply body to send for an approved decision.
func (d ReviewDecision) Body(draft string) string {
	if d.Edited() {
		return d.EditedResponse
	}
	return draft
}

// Edited reports whether the reviewer supplied a non-blank replacement reply
func (d ReviewDecision) Edited() bool {
	return strings.TrimSpace(d.EditedResponse) != ""
}
