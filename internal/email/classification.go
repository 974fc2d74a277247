package email

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidIntent is returned for intent values outside the fixed set.
	ErrInvalidIntent = errors.New("invalid intent")

	// ErrInvalidUrgency is returned for urgency values outside the fixed set.
	ErrInvalidUrgency = errors.New("invalid urgency")
)

// Intent represents the purpose of an email
type Intent string

const (
	IntentQuestion Intent = "question"
	IntentBug      Intent = "bug"
	IntentBilling  Intent = "billing"
	IntentFeature  Intent = "feature"
	IntentComplex  Intent = "complex"
)

// Intents lists every valid intent.
var Intents = []Intent{IntentQuestion, IntentBug, IntentBilling, IntentFeature, IntentComplex}

// Urgency represents the priority of an email
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Urgencies lists every valid urgency, lowest first.
var Urgencies = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical}

// Valid reports whether i is one of the fixed intents.
func (i Intent) Valid() bool {
	for _, v := range Intents {
		if i == v {
			return true
		}
	}
	return false
}

// Valid reports whether u is one of the fixed urgencies.
func (u Urgency) Valid() bool {
	for _, v := range Urgencies {
		if u == v {
			return true
		}
	}
	return false
}

// ParseIntent parses an intent, ignoring case and surrounding whitespace.
func ParseIntent(s string) (Intent, error) {
	i := Intent(strings.ToLower(strings.TrimSpace(s)))
	if !i.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidIntent, s)
	}
	return i, nil
}

// ParseUrgency parses an urgency, ignoring case and surrounding whitespace.
func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(strings.ToLower(strings.TrimSpace(s)))
	if !u.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidUrgency, s)
	}
	return u, nil
}

// Classification is the structured result of classifying an email.
// It is treated as immutable once attached to a Record.
type Classification struct {
	Intent  Intent  `json:"intent" yaml:"intent"`
	Urgency Urgency `json:"urgency" yaml:"urgency"`
	Topic   string  `json:"topic" yaml:"topic"`
	Summary string  `json:"summary" yaml:"summary"`
}

// Validate checks intent and urgency against the fixed sets.
func (c Classification) Validate() error {
	if !c.Intent.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidIntent, c.Intent)
	}
	if !c.Urgency.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidUrgency, c.Urgency)
	}
	return nil
}
