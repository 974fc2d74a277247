package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aescanero/dago-node-triage/internal/draft"
	"github.com/aescanero/dago-node-triage/internal/email"
	"github.com/aescanero/dago-node-triage/internal/inbox"
	"github.com/aescanero/dago-node-triage/internal/retry"
	"github.com/aescanero/dago-node-triage/internal/router"
	"github.com/aescanero/dago-node-triage/internal/send"
	"github.com/aescanero/dago-node-triage/internal/session"
	"github.com/aescanero/dago-node-triage/internal/ticket"
)

// readMessage builds the initial record for an inbound message
func readMessage(msg inbox.Message) email.Record {
	return email.Record{
		EmailID:      msg.ID,
		ThreadID:     msg.ThreadID,
		SenderEmail:  msg.From,
		Subject:      msg.Subject,
		EmailContent: msg.Body,
		Messages:     []string{},
	}
}

func (w *Workflow) handleRead(ctx context.Context, s *session.Session) (email.Stage, error) {
	s.Record.Logf("read: email %s from %s", s.Record.EmailID, s.Record.SenderEmail)
	return w.next(ctx, s)
}

// handleClassify never fails the session: an unusable classification sends
// the email to a human instead.
func (w *Workflow) handleClassify(ctx context.Context, s *session.Session) (email.Stage, error) {
	var c email.Classification

	err := retry.Do(ctx, w.retry, func(ctx context.Context) error {
		out, err := w.classifier.Classify(ctx, s.Record.EmailContent)
		if err != nil {
			return err
		}
		if err := out.Validate(); err != nil {
			return err
		}
		c = out
		return nil
	}, func(attempt int, err error) {
		w.logger.Warn("classification attempt failed",
			zap.String("session_id", s.ID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	})
	if err != nil {
		return w.escalate(s, fmt.Errorf("%w: %w", ErrClassification, err))
	}

	s.Record.Classification = &c
	s.Record.Logf("classify: intent=%s urgency=%s topic=%q", c.Intent, c.Urgency, c.Topic)

	next, err := w.next(ctx, s)
	if errors.Is(err, router.ErrInvalidClassification) {
		return w.escalate(s, fmt.Errorf("%w: %w", ErrClassification, err))
	}
	return next, err
}

// escalate records a classification failure and routes to review
func (w *Workflow) escalate(s *session.Session, err error) (email.Stage, error) {
	s.LastError = err.Error()
	s.Record.Logf("classify: %v; escalating to human review", err)

	w.logger.Warn("classification failed, escalating to review",
		zap.String("session_id", s.ID),
		zap.Error(err),
	)

	return email.StageReview, nil
}

func (w *Workflow) handleSearch(ctx context.Context, s *session.Session) (email.Stage, error) {
	c := s.Record.Classification

	var results []string
	err := retry.Do(ctx, w.retry, func(ctx context.Context) error {
		out, err := w.searcher.Search(ctx, c.Intent, c.Topic)
		if err != nil {
			return err
		}
		results = out
		return nil
	}, func(attempt int, err error) {
		w.logger.Warn("search attempt failed",
			zap.String("session_id", s.ID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	})

	if err != nil {
		s.Record.Logf("search: %v; continuing without knowledge-base results", fmt.Errorf("%w: %w", ErrSearch, err))
	} else {
		s.Record.SearchResults = results
		s.Record.Logf("search: found %d result(s)", len(results))
	}

	return w.next(ctx, s)
}

func (w *Workflow) handleTicket(ctx context.Context, s *session.Session) (email.Stage, error) {
	c := s.Record.Classification
	priority := ticket.PriorityFor(c.Urgency)

	id, err := w.tracker.Create(ctx, c.Topic, s.Record.EmailContent, priority)
	if err != nil {
		s.Record.Logf("ticket: %v; continuing without a ticket", fmt.Errorf("%w: %w", ErrTicket, err))
		w.logger.Warn("ticket creation failed",
			zap.String("session_id", s.ID),
			zap.Error(err),
		)
	} else {
		s.Record.TicketInfo = id
		s.Record.Logf("ticket: created %s with priority %s", id, priority)
	}

	return w.next(ctx, s)
}

func (w *Workflow) handleDraft(ctx context.Context, s *session.Session) (email.Stage, error) {
	if err := w.prepareDraft(ctx, s); err != nil {
		return "", err
	}
	return w.next(ctx, s)
}

// handleReview prepares a draft when the route skipped the draft stage, then
// suspends the session.
func (w *Workflow) handleReview(ctx context.Context, s *session.Session) (email.Stage, error) {
	if s.Record.DraftResponse == "" {
		if err := w.prepareDraft(ctx, s); err != nil {
			return "", err
		}
	}

	s.Record.Logf("review: awaiting human decision")
	return email.StageReview, errPaused
}

func (w *Workflow) prepareDraft(ctx context.Context, s *session.Session) error {
	body, err := w.drafter.Draft(ctx, draft.Request{
		Content:        s.Record.EmailContent,
		Classification: s.Record.Classification,
		SearchResults:  s.Record.SearchResults,
		TicketInfo:     s.Record.TicketInfo,
	})
	if err == nil && strings.TrimSpace(body) == "" {
		err = errors.New("drafter returned an empty response")
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDraft, err)
	}

	s.Record.DraftResponse = body
	s.Record.Logf("draft: prepared %d character reply", len(body))
	return nil
}

func (w *Workflow) handleSend(ctx context.Context, s *session.Session) (email.Stage, error) {
	body := s.Record.DraftResponse
	if s.Decision != nil {
		body = s.Decision.Body(body)
	}

	msg := &send.Message{
		To:        s.Record.SenderEmail,
		Subject:   s.Record.ReplySubject(),
		Body:      body,
		InReplyTo: s.Record.EmailID,
	}

	if err := w.sender.Send(ctx, msg); err != nil {
		return "", fmt.Errorf("%w via %s: %w", ErrSend, w.sender.Name(), err)
	}

	s.Record.Logf("send: reply sent to %s via %s", msg.To, w.sender.Name())
	return w.next(ctx, s)
}

// next asks the router for the stage after the current one
func (w *Workflow) next(ctx context.Context, s *session.Session) (email.Stage, error) {
	result, err := w.router.Route(ctx, s.Record.Classification, s.Stage)
	if err != nil {
		return "", err
	}
	return result.Next, nil
}
