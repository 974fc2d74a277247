// Package app assembles triage workflows from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/aescanero/dago-adapters/pkg/llm"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-triage/internal/classify"
	"github.com/aescanero/dago-node-triage/internal/config"
	"github.com/aescanero/dago-node-triage/internal/draft"
	"github.com/aescanero/dago-node-triage/internal/search"
	"github.com/aescanero/dago-node-triage/internal/send"
	"github.com/aescanero/dago-node-triage/internal/send/ses"
	"github.com/aescanero/dago-node-triage/internal/send/stdout"
	"github.com/aescanero/dago-node-triage/internal/session"
	"github.com/aescanero/dago-node-triage/internal/ticket"
	"github.com/aescanero/dago-node-triage/internal/triage"
)

// NewWorkflow builds a workflow from cfg around the given session store
func NewWorkflow(ctx context.Context, cfg *config.Config, store session.Store, logger *zap.Logger) (*triage.Workflow, error) {
	classifier, err := NewClassifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	searcher, err := NewSearcher(cfg)
	if err != nil {
		return nil, err
	}

	sender, err := NewSender(ctx, cfg)
	if err != nil {
		return nil, err
	}

	policy := cfg.RetryPolicy()

	wf, err := triage.NewWorkflow(triage.Dependencies{
		Classifier: classifier,
		Searcher:   searcher,
		Tracker:    ticket.NewMemoryTracker(),
		Drafter:    draft.NewTemplateDrafter(),
		Sender:     sender,
		Store:      store,
		Retry:      &policy,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	logger.Info("workflow initialized",
		zap.String("classifier", cfg.Classifier),
		zap.String("sender", sender.Name()),
	)

	return wf, nil
}

// NewSessionStore returns the configured session store. The Redis client is
// only used by the redis backend.
func NewSessionStore(cfg *config.Config, client *redis.Client, logger *zap.Logger) session.Store {
	if cfg.SessionBackend == "memory" {
		return session.NewMemoryStore()
	}
	return session.NewRedisStore(client, cfg.SessionTTL, logger)
}

// NewClassifier returns the configured classifier
func NewClassifier(cfg *config.Config, logger *zap.Logger) (classify.Classifier, error) {
	if cfg.Classifier != "llm" {
		return classify.NewKeywordClassifier(), nil
	}

	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required for the llm classifier")
	}

	client, err := llm.NewClient(&llm.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	logger.Info("llm client initialized",
		zap.String("provider", cfg.LLMProvider),
		zap.String("model", cfg.LLMModel),
	)

	complete := withTimeout(classify.NewClientCompleter(client, cfg.LLMModel, cfg.LLMMaxTokens), cfg.LLMTimeout)
	return classify.NewLLMClassifier(complete, logger), nil
}

// withTimeout bounds each completion call
func withTimeout(complete classify.CompleteFunc, timeout time.Duration) classify.CompleteFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return complete(ctx, prompt)
	}
}

// NewSearcher returns the knowledge base from KB_FILE, or the built-in one
func NewSearcher(cfg *config.Config) (search.Searcher, error) {
	if cfg.KBFile == "" {
		return search.NewKnowledgeBase(search.DefaultDocuments()), nil
	}

	kb, err := search.LoadKnowledgeBase(cfg.KBFile)
	if err != nil {
		return nil, err
	}
	return kb, nil
}

// NewSender returns the configured reply sender
func NewSender(ctx context.Context, cfg *config.Config) (send.Sender, error) {
	switch cfg.Sender {
	case "ses":
		s, err := ses.New(ctx, ses.Config{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Sender:          cfg.SenderAddress,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ses sender: %w", err)
		}
		return s, nil
	default:
		return stdout.New(cfg.SenderAddress), nil
	}
}
