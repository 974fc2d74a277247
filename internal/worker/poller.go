package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/dago-node-triage/internal/inbox"
)

// enqueuer accepts inbound messages for processing
type enqueuer interface {
	Enqueue(ctx context.Context, msg inbox.Message) error
}

// Poller periodically fetches new messages from an inbox source and
// enqueues them. Messages already enqueued by this poller are skipped.
type Poller struct {
	source   inbox.Source
	queue    enqueuer
	interval time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	seen map[string]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a new inbox poller
func NewPoller(source inbox.Source, queue enqueuer, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		source:   source,
		queue:    queue,
		interval: interval,
		logger:   logger,
		seen:     make(map[string]bool),
	}
}

// Start polls immediately and then every interval until Stop
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("inbox poll failed", zap.Error(err))
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	p.logger.Info("inbox poller started", zap.Duration("interval", p.interval))
}

// Stop stops polling
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.logger.Info("inbox poller stopped")
}

// Poll fetches once and enqueues unseen messages, returning how many were enqueued
func (p *Poller) Poll(ctx context.Context) (int, error) {
	msgs, err := p.source.Fetch(ctx)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, msg := range msgs {
		p.mu.Lock()
		seen := p.seen[msg.ID]
		p.mu.Unlock()
		if seen {
			continue
		}

		if err := p.queue.Enqueue(ctx, msg); err != nil {
			p.logger.Error("failed to enqueue email",
				zap.String("email_id", msg.ID),
				zap.Error(err),
			)
			continue
		}

		p.mu.Lock()
		p.seen[msg.ID] = true
		p.mu.Unlock()
		enqueued++

		p.logger.Debug("enqueued email", zap.String("email_id", msg.ID))
	}

	return enqueued, nil
}
