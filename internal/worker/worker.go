package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-triage/internal/config"
	"github.com/aescanero/dago-node-triage/internal/email"
	"github.com/aescanero/dago-node-triage/internal/inbox"
	"github.com/aescanero/dago-node-triage/internal/session"
	"github.com/aescanero/dago-node-triage/internal/triage"
)

// processor runs the triage workflow for one inbound message
type processor interface {
	Process(ctx context.Context, msg inbox.Message) (*triage.Outcome, error)
}

// streams is the part of the Redis client the worker uses
type streams interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// Worker consumes inbound emails from a Redis stream and triages them
type Worker struct {
	id            string
	config        *config.Config
	redisClient   streams
	workflow      processor
	logger        *zap.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	streamKey     string
	consumerGroup string
	resultStream  string
}

// NewWorker creates a new worker
func NewWorker(
	cfg *config.Config,
	redisClient streams,
	workflow processor,
	logger *zap.Logger,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		id:            cfg.WorkerID,
		config:        cfg,
		redisClient:   redisClient,
		workflow:      workflow,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		streamKey:     cfg.StreamKey,
		consumerGroup: cfg.ConsumerGroup,
		resultStream:  cfg.ResultStream,
	}
}

// Start starts the worker
func (w *Worker) Start() error {
	w.logger.Info("starting triage worker",
		zap.String("worker_id", w.id),
		zap.String("stream_key", w.streamKey),
		zap.String("consumer_group", w.consumerGroup),
	)

	// Create consumer group if it doesn't exist
	if err := w.ensureConsumerGroup(); err != nil {
		return fmt.Errorf("failed to ensure consumer group: %w", err)
	}

	w.wg.Add(1)
	go w.processWork()

	w.logger.Info("triage worker started", zap.String("worker_id", w.id))
	return nil
}

// Stop stops the worker and waits for the in-flight email to finish
func (w *Worker) Stop() error {
	w.logger.Info("stopping triage worker", zap.String("worker_id", w.id))

	w.cancel()
	w.wg.Wait()

	w.logger.Info("triage worker stopped", zap.String("worker_id", w.id))
	return nil
}

// Enqueue adds an inbound message to the work stream
func (w *Worker) Enqueue(ctx context.Context, msg inbox.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	_, err = w.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: w.streamKey,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}

	return nil
}

// ensureConsumerGroup creates the consumer group if it doesn't exist
func (w *Worker) ensureConsumerGroup() error {
	err := w.redisClient.XGroupCreateMkStream(w.ctx, w.streamKey, w.consumerGroup, "0").Err()
	if err != nil {
		// BUSYGROUP means the group already exists
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			w.logger.Debug("consumer group already exists",
				zap.String("group", w.consumerGroup),
			)
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	w.logger.Info("created consumer group",
		zap.String("group", w.consumerGroup),
		zap.String("stream", w.streamKey),
	)
	return nil
}

// processWork processes work from the Redis stream
func (w *Worker) processWork() {
	defer w.wg.Done()
	w.logger.Info("starting work processing loop")

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("work processing loop stopped")
			return
		default:
			streams, err := w.redisClient.XReadGroup(w.ctx, &redis.XReadGroupArgs{
				Group:    w.consumerGroup,
				Consumer: w.id,
				Streams:  []string{w.streamKey, ">"},
				Count:    1,
				Block:    w.config.BlockTime,
			}).Result()

			if err != nil {
				if errors.Is(err, redis.Nil) || w.ctx.Err() != nil {
					continue
				}
				w.logger.Error("failed to read from stream",
					zap.Error(err),
				)
				time.Sleep(time.Second)
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					w.handleMessage(message)
				}
			}
		}
	}
}

// handleMessage triages a single inbound email
func (w *Worker) handleMessage(message redis.XMessage) {
	messageID := message.ID
	w.logger.Info("processing inbound email",
		zap.String("message_id", messageID),
	)

	msg, err := parseMessage(message.Values)
	if err != nil {
		w.logger.Error("failed to parse inbound email",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		w.publishError(newErrorEvent(messageID, nil, err))
		w.acknowledgeMessage(messageID)
		return
	}

	// The email is processed to a stable point even if the worker is stopping
	ctx := context.WithoutCancel(w.ctx)

	outcome, err := w.workflow.Process(ctx, *msg)
	switch {
	case errors.Is(err, session.ErrExists):
		// Redelivery of an email that already has a session
		w.logger.Warn("skipping duplicate email",
			zap.String("message_id", messageID),
			zap.String("email_id", msg.ID),
			zap.Error(err),
		)
	case err != nil:
		w.logger.Error("failed to triage email",
			zap.String("message_id", messageID),
			zap.String("email_id", msg.ID),
			zap.Error(err),
		)
		w.publishError(newErrorEvent(messageID, outcome, err))
	default:
		if err := w.publishOutcome(newOutcomeEvent(messageID, outcome)); err != nil {
			w.logger.Error("failed to publish outcome",
				zap.String("message_id", messageID),
				zap.Error(err),
			)
		}
	}

	w.acknowledgeMessage(messageID)
}

// parseMessage decodes the data field of a stream entry
func parseMessage(values map[string]interface{}) (*inbox.Message, error) {
	dataStr, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'data' field")
	}

	var msg inbox.Message
	if err := json.Unmarshal([]byte(dataStr), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal inbound email: %w", err)
	}

	return &msg, nil
}

// OutcomeEvent is published to the result stream for every triaged email
type OutcomeEvent struct {
	MessageID      string                `json:"message_id"`
	SessionID      string                `json:"session_id,omitempty"`
	Stage          email.Stage           `json:"stage,omitempty"`
	Status         session.Status        `json:"status,omitempty"`
	Trail          []email.Stage         `json:"trail,omitempty"`
	Classification *email.Classification `json:"classification,omitempty"`
	Draft          string                `json:"draft,omitempty"`
	Error          string                `json:"error,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
}

func newOutcomeEvent(messageID string, outcome *triage.Outcome) *OutcomeEvent {
	ev := &OutcomeEvent{
		MessageID: messageID,
		Timestamp: time.Now().UTC(),
	}
	if outcome != nil {
		ev.SessionID = outcome.SessionID
		ev.Stage = outcome.Stage
		ev.Status = outcome.Status
		ev.Trail = outcome.Trail
		ev.Classification = outcome.Classification
		// Reviewers need the draft of a paused session
		if outcome.Paused() {
			ev.Draft = outcome.Draft
		}
	}
	return ev
}

func newErrorEvent(messageID string, outcome *triage.Outcome, err error) *OutcomeEvent {
	ev := newOutcomeEvent(messageID, outcome)
	ev.Error = err.Error()
	return ev
}

// publishOutcome publishes a triage outcome
func (w *Worker) publishOutcome(ev *OutcomeEvent) error {
	if err := w.publish(w.resultStream, ev); err != nil {
		return err
	}

	w.logger.Info("published triage outcome",
		zap.String("session_id", ev.SessionID),
		zap.String("stage", string(ev.Stage)),
		zap.String("status", string(ev.Status)),
	)
	return nil
}

// publishError publishes an error event to a separate stream
func (w *Worker) publishError(ev *OutcomeEvent) {
	if err := w.publish(w.resultStream+".errors", ev); err != nil {
		w.logger.Error("failed to publish error event", zap.Error(err))
	}
}

func (w *Worker) publish(stream string, ev *OutcomeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = w.redisClient.XAdd(context.WithoutCancel(w.ctx), &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	return nil
}

// acknowledgeMessage acknowledges a message from the stream
func (w *Worker) acknowledgeMessage(messageID string) {
	err := w.redisClient.XAck(context.WithoutCancel(w.ctx), w.streamKey, w.consumerGroup, messageID).Err()
	if err != nil {
		w.logger.Error("failed to acknowledge message",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}
