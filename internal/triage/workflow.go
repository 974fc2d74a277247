package triage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aescanero/dago-node-triage/internal/classify"
	"github.com/aescanero/dago-node-triage/internal/draft"
	"github.com/aescanero/dago-node-triage/internal/email"
	"github.com/aescanero/dago-node-triage/internal/inbox"
	"github.com/aescanero/dago-node-triage/internal/retry"
	"github.com/aescanero/dago-node-triage/internal/router"
	"github.com/aescanero/dago-node-triage/internal/search"
	"github.com/aescanero/dago-node-triage/internal/send"
	"github.com/aescanero/dago-node-triage/internal/session"
	"github.com/aescanero/dago-node-triage/internal/ticket"
	"github.com/aescanero/dago-node-triage/internal/tracing"
)

// errPaused is returned by the review handler to suspend the loop
var errPaused = errors.New("paused for review")

// Dependencies are the collaborators a Workflow is built from.
// Router and Retry are optional; the rest are required.
type Dependencies struct {
	Classifier classify.Classifier
	Searcher   search.Searcher
	Tracker    ticket.Tracker
	Drafter    draft.Drafter
	Sender     send.Sender
	Store      session.Store
	Router     *router.Router
	Retry      *retry.Policy
	Logger     *zap.Logger
}

// Outcome summarizes where a session stands after a workflow call
type Outcome struct {
	SessionID      string                `json:"session_id"`
	Stage          email.Stage           `json:"stage"`
	Status         session.Status        `json:"status"`
	Trail          []email.Stage         `json:"trail"`
	Draft          string                `json:"draft,omitempty"`
	Classification *email.Classification `json:"classification,omitempty"`
	LastError      string                `json:"last_error,omitempty"`
}

// Paused reports whether the session is waiting for a review decision
func (o *Outcome) Paused() bool {
	return o.Status == session.StatusPaused
}

// stageHandler runs one stage and returns the stage that follows it
type stageHandler func(ctx context.Context, s *session.Session) (email.Stage, error)

// Workflow drives sessions through the triage stages
type Workflow struct {
	classifier classify.Classifier
	searcher   search.Searcher
	tracker    ticket.Tracker
	drafter    draft.Drafter
	sender     send.Sender
	store      session.Store
	router     *router.Router
	retry      retry.Policy
	logger     *zap.Logger

	handlers map[email.Stage]stageHandler
}

// NewWorkflow creates a workflow from deps
func NewWorkflow(deps Dependencies) (*Workflow, error) {
	switch {
	case deps.Classifier == nil:
		return nil, fmt.Errorf("classifier is required")
	case deps.Searcher == nil:
		return nil, fmt.Errorf("searcher is required")
	case deps.Tracker == nil:
		return nil, fmt.Errorf("tracker is required")
	case deps.Drafter == nil:
		return nil, fmt.Errorf("drafter is required")
	case deps.Sender == nil:
		return nil, fmt.Errorf("sender is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("session store is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rt := deps.Router
	if rt == nil {
		var err error
		rt, err = router.NewRouter(logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create router: %w", err)
		}
	}

	policy := retry.DefaultPolicy()
	if deps.Retry != nil {
		policy = *deps.Retry
	}

	w := &Workflow{
		classifier: deps.Classifier,
		searcher:   deps.Searcher,
		tracker:    deps.Tracker,
		drafter:    deps.Drafter,
		sender:     deps.Sender,
		store:      deps.Store,
		router:     rt,
		retry:      policy,
		logger:     logger,
	}

	w.handlers = map[email.Stage]stageHandler{
		email.StageRead:     w.handleRead,
		email.StageClassify: w.handleClassify,
		email.StageSearch:   w.handleSearch,
		email.StageTicket:   w.handleTicket,
		email.StageDraft:    w.handleDraft,
		email.StageReview:   w.handleReview,
		email.StageSend:     w.handleSend,
	}

	return w, nil
}

// Process starts a new session for msg and runs it until it completes,
// fails, or pauses for review. The session ID is the message ID.
func (w *Workflow) Process(ctx context.Context, msg inbox.Message) (*Outcome, error) {
	if err := msg.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	ctx, span := tracing.StartSpan(ctx, "triage.process", map[string]string{"session_id": msg.ID})
	outcome, err := w.process(ctx, msg)
	tracing.EndSpan(span, err)

	return outcome, err
}

func (w *Workflow) process(ctx context.Context, msg inbox.Message) (*Outcome, error) {
	s := &session.Session{
		ID:     msg.ID,
		Record: readMessage(msg),
		Status: session.StatusRunning,
	}
	s.Enter(email.StageRead)

	if err := w.store.Create(ctx, s); err != nil {
		if errors.Is(err, session.ErrExists) {
			return nil, fmt.Errorf("%w: %w: %s", ErrSessionState, err, s.ID)
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	w.logger.Info("processing email",
		zap.String("session_id", s.ID),
		zap.String("thread_id", s.Record.ThreadID),
		zap.String("sender", s.Record.SenderEmail),
	)

	return w.run(ctx, s)
}

// Resume continues a paused session with a review decision
func (w *Workflow) Resume(ctx context.Context, sessionID string, decision email.ReviewDecision) (*Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "triage.resume", map[string]string{"session_id": sessionID})
	outcome, err := w.resume(ctx, sessionID, decision)
	tracing.EndSpan(span, err)

	return outcome, err
}

func (w *Workflow) resume(ctx context.Context, sessionID string, decision email.ReviewDecision) (*Outcome, error) {
	s, err := w.claim(ctx, sessionID, func(s *session.Session) error {
		if s.Status != session.StatusPaused || s.Stage != email.StageReview {
			return fmt.Errorf("%w: session %s is %s at %s, not paused for review",
				ErrSessionState, s.ID, s.Status, s.Stage)
		}
		d := decision
		s.Decision = &d
		s.Status = session.StatusResuming
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := router.RouteReview(decision)
	s.Record.Logf("review: %s", result.Reasoning)
	s.Status = session.StatusRunning
	s.Enter(result.Next)

	w.logger.Info("session resumed",
		zap.String("session_id", s.ID),
		zap.Bool("approved", decision.Approved),
		zap.Bool("edited", decision.Edited()),
		zap.String("next_stage", string(result.Next)),
	)

	if err := w.checkpoint(ctx, s); err != nil {
		w.release(ctx, sessionID)
		return nil, err
	}

	return w.run(ctx, s)
}

// release returns a claimed session to the review queue after the resume
// could not be recorded, so the decision can be given again.
func (w *Workflow) release(ctx context.Context, sessionID string) {
	_, err := w.store.Update(ctx, sessionID, func(s *session.Session) error {
		if s.Status != session.StatusResuming || s.Stage != email.StageReview {
			return fmt.Errorf("%w: session %s is %s at %s, not resuming",
				ErrSessionState, s.ID, s.Status, s.Stage)
		}
		s.Status = session.StatusPaused
		s.Decision = nil
		return nil
	})
	if err != nil {
		w.logger.Error("failed to release resumed session",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return
	}

	w.logger.Warn("resume not recorded, session returned to review",
		zap.String("session_id", sessionID),
	)
}

// RetrySend re-invokes the send stage of a session that failed to send
func (w *Workflow) RetrySend(ctx context.Context, sessionID string) (*Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "triage.retry_send", map[string]string{"session_id": sessionID})
	outcome, err := w.retrySend(ctx, sessionID)
	tracing.EndSpan(span, err)

	return outcome, err
}

func (w *Workflow) retrySend(ctx context.Context, sessionID string) (*Outcome, error) {
	s, err := w.claim(ctx, sessionID, func(s *session.Session) error {
		if s.Status != session.StatusFailed || s.Stage != email.StageSend {
			return fmt.Errorf("%w: session %s is %s at %s, not a failed send",
				ErrSessionState, s.ID, s.Status, s.Stage)
		}
		s.Status = session.StatusRunning
		s.LastError = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("retrying send", zap.String("session_id", s.ID))

	return w.run(ctx, s)
}

// Session returns the stored session
func (w *Workflow) Session(ctx context.Context, sessionID string) (*session.Session, error) {
	s, err := w.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown session %s", ErrSessionState, sessionID)
		}
		return nil, err
	}
	return s, nil
}

// Pending lists sessions waiting for a review decision
func (w *Workflow) Pending(ctx context.Context) ([]*session.Session, error) {
	all, err := w.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var pending []*session.Session
	for _, s := range all {
		if s.Status == session.StatusPaused {
			pending = append(pending, s)
		}
	}
	return pending, nil
}

// claim atomically applies check to the stored session. Store errors are
// reported as ErrSessionState; the store is unchanged when check fails.
func (w *Workflow) claim(ctx context.Context, sessionID string, check func(s *session.Session) error) (*session.Session, error) {
	s, err := w.store.Update(ctx, sessionID, check)
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, session.ErrNotFound):
		return nil, fmt.Errorf("%w: unknown session %s", ErrSessionState, sessionID)
	case errors.Is(err, session.ErrConflict):
		return nil, fmt.Errorf("%w: session %s modified concurrently", ErrSessionState, sessionID)
	default:
		return nil, err
	}
}

// run executes stages from the session's current stage until done, pause,
// or failure. The session is saved after every stage.
func (w *Workflow) run(ctx context.Context, s *session.Session) (*Outcome, error) {
	for s.Stage != email.StageDone {
		stage := s.Stage
		next, err := w.runStage(ctx, s)

		if errors.Is(err, errPaused) {
			s.Status = session.StatusPaused
			if err := w.checkpoint(ctx, s); err != nil {
				if rerr := w.recoverCheckpoint(ctx, s, err); rerr != nil {
					return outcomeOf(s), err
				}
			}

			w.logger.Info("session paused for review",
				zap.String("session_id", s.ID),
				zap.String("trail", email.FormatTrail(s.Trail)),
			)
			return outcomeOf(s), nil
		}

		if err != nil {
			s.Status = session.StatusFailed
			s.LastError = err.Error()
			s.Record.Logf("%s: %v", stage, err)
			if cerr := w.checkpoint(ctx, s); cerr != nil {
				_ = w.recoverCheckpoint(ctx, s, cerr)
			}

			w.logger.Error("session failed",
				zap.String("session_id", s.ID),
				zap.String("stage", string(stage)),
				zap.Error(err),
			)
			return outcomeOf(s), err
		}

		s.Enter(next)
		if err := w.checkpoint(ctx, s); err != nil {
			// A running session nothing drives any more is recorded as failed
			_ = w.recoverCheckpoint(ctx, s, err)
			return outcomeOf(s), err
		}
	}

	s.Status = session.StatusCompleted
	if err := w.checkpoint(ctx, s); err != nil {
		if rerr := w.recoverCheckpoint(ctx, s, err); rerr != nil {
			return outcomeOf(s), err
		}
	}

	w.logger.Info("session completed",
		zap.String("session_id", s.ID),
		zap.String("trail", email.FormatTrail(s.Trail)),
	)

	return outcomeOf(s), nil
}

// runStage invokes the handler for the session's stage inside a span
func (w *Workflow) runStage(ctx context.Context, s *session.Session) (email.Stage, error) {
	handler, ok := w.handlers[s.Stage]
	if !ok {
		return "", fmt.Errorf("%w: no handler for stage %s", ErrSessionState, s.Stage)
	}

	ctx, span := tracing.StartSpan(ctx, "stage."+string(s.Stage), stageAttributes(s))
	next, err := handler(ctx, s)
	if errors.Is(err, errPaused) {
		tracing.EndSpan(span, nil)
	} else {
		tracing.EndSpan(span, err)
	}

	if err == nil {
		w.logger.Debug("stage complete",
			zap.String("session_id", s.ID),
			zap.String("stage", string(s.Stage)),
			zap.String("next_stage", string(next)),
		)
	}

	return next, err
}

func (w *Workflow) checkpoint(ctx context.Context, s *session.Session) error {
	if err := w.store.Save(ctx, s); err != nil {
		return fmt.Errorf("failed to checkpoint session %s: %w", s.ID, err)
	}
	return nil
}

// recoverCheckpoint writes s again through a read-modify-write after a failed
// Save. A session still marked running is stored as failed with the cause.
func (w *Workflow) recoverCheckpoint(ctx context.Context, s *session.Session, cause error) error {
	w.logger.Error("failed to checkpoint session",
		zap.String("session_id", s.ID),
		zap.String("stage", string(s.Stage)),
		zap.Error(cause),
	)

	if s.Status == session.StatusRunning || s.Status == session.StatusResuming {
		s.Status = session.StatusFailed
		s.LastError = cause.Error()
		s.Record.Logf("%s: %v", s.Stage, cause)
	}

	snapshot := *s
	stored, err := w.store.Update(ctx, s.ID, func(cur *session.Session) error {
		version := cur.Version
		*cur = snapshot
		cur.Version = version
		return nil
	})
	if err != nil {
		w.logger.Error("failed to recover session checkpoint",
			zap.String("session_id", s.ID),
			zap.Error(err),
		)
		return err
	}

	s.Version = stored.Version
	s.UpdatedAt = stored.UpdatedAt
	return nil
}

func stageAttributes(s *session.Session) map[string]string {
	attrs := map[string]string{
		"session_id": s.ID,
		"stage":      string(s.Stage),
	}
	if c := s.Record.Classification; c != nil {
		attrs["intent"] = string(c.Intent)
		attrs["urgency"] = string(c.Urgency)
	}
	return attrs
}

func outcomeOf(s *session.Session) *Outcome {
	return &Outcome{
		SessionID:      s.ID,
		Stage:          s.Stage,
		Status:         s.Status,
		Trail:          append([]email.Stage(nil), s.Trail...),
		Draft:          s.Record.DraftResponse,
		Classification: s.Record.Classification,
		LastError:      s.LastError,
	}
}
