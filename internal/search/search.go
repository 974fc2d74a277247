// Package search looks up knowledge-base snippets relevant to an email.
package search

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aescanero/dago-node-triage/internal/email"
)

// defaultLimit caps the number of snippets returned per search
const defaultLimit = 3

// Searcher searches the knowledge base for an intent and topic
type Searcher interface {
	Search(ctx context.Context, intent email.Intent, topic string) ([]string, error)
}

// Func adapts an ordinary function to the Searcher interface
type Func func(ctx context.Context, intent email.Intent, topic string) ([]string, error)

// Search calls f(ctx, intent, topic)
func (f Func) Search(ctx context.Context, intent email.Intent, topic string) ([]string, error) {
	return f(ctx, intent, topic)
}

// Document is one knowledge-base article
type Document struct {
	Title    string         `yaml:"title"`
	Body     string         `yaml:"body"`
	Intents  []email.Intent `yaml:"intents,omitempty"`
	Keywords []string       `yaml:"keywords"`
}

// KnowledgeBase is an in-memory keyword index over a fixed set of documents
type KnowledgeBase struct {
	docs  []Document
	limit int
}

// NewKnowledgeBase creates a knowledge base over docs
func NewKnowledgeBase(docs []Document) *KnowledgeBase {
	return &KnowledgeBase{docs: docs, limit: defaultLimit}
}

// LoadKnowledgeBase reads documents from a YAML file holding a list under "documents"
func LoadKnowledgeBase(path string) (*KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}

	var file struct {
		Documents []Document `yaml:"documents"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base: %w", err)
	}

	return NewKnowledgeBase(file.Documents), nil
}

// DefaultDocuments is the built-in article set used when no file is configured
func DefaultDocuments() []Document {
	return []Document{
		{
			Title:    "Resetting your password",
			Body:     "Use 'Forgot password' on the login page; the reset link is valid for 24 hours.",
			Intents:  []email.Intent{email.IntentQuestion},
			Keywords: []string{"password", "reset", "login", "account"},
		},
		{
			Title:    "Password requirements",
			Body:     "Passwords need at least 12 characters including a number and a symbol.",
			Intents:  []email.Intent{email.IntentQuestion},
			Keywords: []string{"password", "requirements", "security"},
		},
		{
			Title:    "Exporting data",
			Body:     "Reports can be exported as CSV or PDF from Settings > Export.",
			Intents:  []email.Intent{email.IntentQuestion, email.IntentFeature},
			Keywords: []string{"export", "pdf", "csv", "report"},
		},
		{
			Title:    "Feature requests",
			Body:     "Feature requests are reviewed monthly by the product team and tracked on the public roadmap.",
			Intents:  []email.Intent{email.IntentFeature},
			Keywords: []string{"feature", "roadmap", "dark", "mode", "request"},
		},
		{
			Title:    "Billing cycle",
			Body:     "Subscriptions renew on the same day each month; duplicate charges are refunded within 5 business days.",
			Intents:  []email.Intent{email.IntentBilling},
			Keywords: []string{"billing", "charge", "charged", "refund", "invoice"},
		},
	}
}

type scored struct {
	index int
	score int
}

// Search returns up to three "Title: Body" snippets ranked by keyword overlap
// with the topic. Documents restricted to other intents are skipped. An empty
// result is not an error.
func (kb *KnowledgeBase) Search(ctx context.Context, intent email.Intent, topic string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words := strings.Fields(strings.ToLower(topic))

	var hits []scored
	for i, doc := range kb.docs {
		if !appliesTo(doc, intent) {
			continue
		}
		if s := score(doc, words); s > 0 {
			hits = append(hits, scored{index: i, score: s})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].score > hits[b].score
	})

	results := make([]string, 0, kb.limit)
	for _, h := range hits {
		if len(results) == kb.limit {
			break
		}
		doc := kb.docs[h.index]
		results = append(results, doc.Title+": "+doc.Body)
	}

	return results, nil
}

func appliesTo(doc Document, intent email.Intent) bool {
	if len(doc.Intents) == 0 {
		return true
	}
	for _, i := range doc.Intents {
		if i == intent {
			return true
		}
	}
	return false
}

func score(doc Document, words []string) int {
	s := 0
	for _, w := range words {
		for _, kw := range doc.Keywords {
			if strings.EqualFold(w, kw) {
				s++
			}
		}
	}
	return s
}
