package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aescanero/dago-libs/pkg/domain"
	"github.com/aescanero/dago-libs/pkg/ports"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-triage/internal/email"
	"github.com/aescanero/dago-node-triage/internal/eval/template"
)

// ErrMalformedResponse is returned when the model answer contains no JSON object
var ErrMalformedResponse = errors.New("malformed classification response")

// DefaultPrompt is the Handlebars prompt sent to the model
const DefaultPrompt = `Analyze this customer email and classify it.

Email:
{{{truncate content 8000}}}

Respond with a single JSON object and nothing else:
{"intent": one of [{{join intents ", "}}],
 "urgency": one of [{{join urgencies ", "}}],
 "topic": a short topic phrase,
 "summary": one sentence summary}`

// CompleteFunc sends a prompt to a model and returns its text answer
type CompleteFunc func(ctx context.Context, prompt string) (string, error)

// NewClientCompleter adapts a dago LLM client to a CompleteFunc
func NewClientCompleter(client ports.LLMClient, model string, maxTokens int) CompleteFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		req := &domain.LLMRequest{
			Model: model,
			Messages: []domain.Message{
				{
					Role:    "user",
					Content: prompt,
				},
			},
			MaxTokens: maxTokens,
		}

		respInterface, err := client.GenerateCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("llm completion failed: %w", err)
		}

		resp, ok := respInterface.(*domain.LLMResponse)
		if !ok {
			return "", fmt.Errorf("unexpected response type from LLM")
		}

		return resp.Content, nil
	}
}

// LLMClassifier classifies emails with a language model
type LLMClassifier struct {
	complete       CompleteFunc
	templateEngine *template.Engine
	prompt         string
	logger         *zap.Logger
}

// NewLLMClassifier creates an LLM classifier using DefaultPrompt
func NewLLMClassifier(complete CompleteFunc, logger *zap.Logger) *LLMClassifier {
	return &LLMClassifier{
		complete:       complete,
		templateEngine: template.NewEngine(),
		prompt:         DefaultPrompt,
		logger:         logger,
	}
}

type llmAnswer struct {
	Intent  string `json:"intent"`
	Urgency string `json:"urgency"`
	Topic   string `json:"topic"`
	Summary string `json:"summary"`
}

// Classify renders the prompt, calls the model and validates its answer
func (l *LLMClassifier) Classify(ctx context.Context, content string) (email.Classification, error) {
	prompt, err := l.renderPrompt(content)
	if err != nil {
		return email.Classification{}, fmt.Errorf("failed to render prompt: %w", err)
	}

	l.logger.Debug("calling llm for classification", zap.Int("prompt_length", len(prompt)))

	response, err := l.complete(ctx, prompt)
	if err != nil {
		return email.Classification{}, err
	}

	return parseResponse(response)
}

func (l *LLMClassifier) renderPrompt(content string) (string, error) {
	intents := make([]string, len(email.Intents))
	for i, v := range email.Intents {
		intents[i] = string(v)
	}
	urgencies := make([]string, len(email.Urgencies))
	for i, v := range email.Urgencies {
		urgencies[i] = string(v)
	}

	return l.templateEngine.Render(l.prompt, map[string]interface{}{
		"content":   content,
		"intents":   intents,
		"urgencies": urgencies,
	})
}

// parseResponse extracts the first JSON object from a model answer. Models
// often wrap JSON in prose or code fences.
func parseResponse(response string) (email.Classification, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end < start {
		return email.Classification{}, fmt.Errorf("%w: %q", ErrMalformedResponse, response)
	}

	var answer llmAnswer
	if err := json.Unmarshal([]byte(response[start:end+1]), &answer); err != nil {
		return email.Classification{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	intent, err := email.ParseIntent(answer.Intent)
	if err != nil {
		return email.Classification{}, err
	}
	urgency, err := email.ParseUrgency(answer.Urgency)
	if err != nil {
		return email.Classification{}, err
	}

	return email.Classification{
		Intent:  intent,
		Urgency: urgency,
		Topic:   strings.TrimSpace(answer.Topic),
		Summary: strings.TrimSpace(answer.Summary),
	}, nil
}
