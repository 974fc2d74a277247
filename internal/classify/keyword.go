package classify

import (
	"context"
	"strings"
	"unicode"

	"github.com/aescanero/dago-node-triage/internal/email"
)

type keywordRule[T any] struct {
	value    T
	keywords []string
}

// Intent rules are checked in order; the first rule with a matching keyword wins.
var intentRules = []keywordRule[email.Intent]{
	{value: email.IntentBilling, keywords: []string{"charged", "charge", "invoice", "refund", "billing", "payment", "subscription"}},
	{value: email.IntentBug, keywords: []string{"bug", "error", "crash", "broken", "not working", "fails", "exception"}},
	{value: email.IntentFeature, keywords: []string{"feature", "would be great", "could you add", "please add", "support for", "request"}},
	{value: email.IntentQuestion, keywords: []string{"how do i", "how to", "how can i", "where is", "what is", "?"}},
}

var urgencyRules = []keywordRule[email.Urgency]{
	{value: email.UrgencyCritical, keywords: []string{"critical", "outage", "security", "data loss", "production down"}},
	{value: email.UrgencyHigh, keywords: []string{"urgent", "asap", "immediately", "twice", "!"}},
	{value: email.UrgencyMedium, keywords: []string{"soon", "blocked", "error", "crash"}},
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "i": true, "my": true, "me": true, "we": true, "our": true,
	"is": true, "was": true, "are": true, "to": true, "of": true, "in": true, "on": true, "for": true,
	"and": true, "or": true, "it": true, "this": true, "that": true, "do": true, "how": true,
	"can": true, "you": true, "your": true, "please": true, "with": true, "when": true, "hi": true,
	"hello": true, "thanks": true, "be": true, "would": true, "could": true, "have": true, "has": true,
}

// KeywordClassifier classifies emails by keyword matching. It never fails on
// non-empty input: unmatched intent falls back to complex, unmatched urgency to low.
type KeywordClassifier struct{}

// NewKeywordClassifier creates a keyword classifier
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify classifies content by keyword
func (k *KeywordClassifier) Classify(_ context.Context, content string) (email.Classification, error) {
	text := strings.ToLower(content)

	c := email.Classification{
		Intent:  matchFirst(text, intentRules, email.IntentComplex),
		Urgency: matchFirst(text, urgencyRules, email.UrgencyLow),
		Topic:   topicOf(text),
		Summary: summaryOf(content),
	}

	return c, nil
}

func matchFirst[T any](text string, rules []keywordRule[T], fallback T) T {
	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.value
			}
		}
	}
	return fallback
}

// topicOf picks the first three significant words
func topicOf(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	topic := make([]string, 0, 3)
	for _, w := range words {
		if stopWords[w] || len(w) < 3 {
			continue
		}
		topic = append(topic, w)
		if len(topic) == 3 {
			break
		}
	}

	if len(topic) == 0 {
		return "general"
	}
	return strings.Join(topic, " ")
}

// summaryOf returns the first sentence, capped at 160 characters
func summaryOf(content string) string {
	s := strings.TrimSpace(content)
	if idx := strings.IndexAny(s, ".!?\n"); idx >= 0 {
		s = s[:idx+1]
	}
	if r := []rune(s); len(r) > 160 {
		s = string(r[:160])
	}
	return strings.TrimSpace(s)
}
