package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/aescanero/dago-node-triage/internal/email"
	"github.com/aescanero/dago-node-triage/internal/eval/cel"
	"go.uber.org/zap"
)

var (
	// ErrInvalidClassification is returned when a classification is missing or
	// carries an intent or urgency outside the fixed sets.
	ErrInvalidClassification = errors.New("invalid classification")

	// ErrNoRoute is returned for stages that have no automatic successor.
	ErrNoRoute = errors.New("no route")
)

// Rule represents a CEL-based routing rule
type Rule struct {
	Condition string      `json:"condition"`
	Target    email.Stage `json:"target"`
}

// StageRules holds the ordered rules for one stage and the target used when
// none match.
type StageRules struct {
	Rules    []Rule      `json:"rules,omitempty"`
	Fallback email.Stage `json:"fallback"`
}

// Table maps a stage to its routing rules
type Table map[email.Stage]StageRules

// DefaultTable is the fixed triage routing table
func DefaultTable() Table {
	return Table{
		email.StageRead: {Fallback: email.StageClassify},
		email.StageClassify: {
			Rules: []Rule{
				{Condition: "email.intent == 'billing'", Target: email.StageReview},
				{Condition: "email.urgency == 'critical'", Target: email.StageReview},
				{Condition: "email.intent in ['question', 'feature']", Target: email.StageSearch},
				{Condition: "email.intent == 'bug'", Target: email.StageTicket},
			},
			Fallback: email.StageDraft,
		},
		email.StageSearch: {Fallback: email.StageDraft},
		email.StageTicket: {Fallback: email.StageDraft},
		email.StageDraft: {
			Rules: []Rule{
				{Condition: "email.urgency in ['high', 'critical']", Target: email.StageReview},
				{Condition: "email.intent == 'complex'", Target: email.StageReview},
			},
			Fallback: email.StageSend,
		},
		email.StageSend: {Fallback: email.StageDone},
	}
}

// Result represents the result of a routing decision
type Result struct {
	Next      email.Stage `json:"next"`
	Reasoning string      `json:"reasoning"`
	PathTaken string      `json:"path_taken"` // "rule", "fallback"
}

// Router handles routing decisions
type Router struct {
	celEvaluator *cel.Evaluator
	table        Table
	logger       *zap.Logger
}

// NewRouter creates a router over the default table
func NewRouter(logger *zap.Logger) (*Router, error) {
	return NewRouterWithTable(DefaultTable(), logger)
}

// NewRouterWithTable creates a router over the given table. Every condition is
// compiled up front so a broken table fails at construction, not mid-pipeline.
func NewRouterWithTable(table Table, logger *zap.Logger) (*Router, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}

	r := &Router{
		celEvaluator: evaluator,
		table:        table,
		logger:       logger,
	}

	if err := r.validateTable(); err != nil {
		return nil, fmt.Errorf("invalid routing table: %w", err)
	}

	return r, nil
}

// Route returns the stage that follows stage for an email with the given
// classification.
func (r *Router) Route(ctx context.Context, c *email.Classification, stage email.Stage) (*Result, error) {
	rules, ok := r.table[stage]
	if !ok {
		return nil, fmt.Errorf("%w from stage %q", ErrNoRoute, stage)
	}

	if len(rules.Rules) == 0 {
		return &Result{
			Next:      rules.Fallback,
			Reasoning: fmt.Sprintf("stage %s always continues to %s", stage, rules.Fallback),
			PathTaken: "fallback",
		}, nil
	}

	if c == nil {
		return nil, fmt.Errorf("%w: missing classification at stage %s", ErrInvalidClassification, stage)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidClassification, err)
	}

	vars := prepareStateForCEL(c)

	for i, rule := range rules.Rules {
		matched, err := r.celEvaluator.EvaluateBool(ctx, rule.Condition, vars)
		if err != nil {
			// The table is fixed and validated, so this is a programming error
			return nil, fmt.Errorf("rule %d at stage %s: %w", i, stage, err)
		}

		if matched {
			r.logger.Debug("rule matched",
				zap.String("stage", string(stage)),
				zap.Int("rule_index", i),
				zap.String("condition", rule.Condition),
				zap.String("target", string(rule.Target)),
			)

			return &Result{
				Next:      rule.Target,
				Reasoning: fmt.Sprintf("matched rule %d: %s", i, rule.Condition),
				PathTaken: "rule",
			}, nil
		}
	}

	r.logger.Debug("no rules matched, using fallback",
		zap.String("stage", string(stage)),
		zap.String("fallback", string(rules.Fallback)),
	)

	return &Result{
		Next:      rules.Fallback,
		Reasoning: "no rules matched",
		PathTaken: "fallback",
	}, nil
}

// RouteReview returns the stage that follows a human review decision
func RouteReview(d email.ReviewDecision) *Result {
	if !d.Approved {
		return &Result{
			Next:      email.StageDone,
			Reasoning: "rejected by reviewer",
			PathTaken: "rule",
		}
	}

	reason := "approved by reviewer"
	if d.Edited() {
		reason = "approved by reviewer with edits"
	}

	return &Result{
		Next:      email.StageSend,
		Reasoning: reason,
		PathTaken: "rule",
	}
}

// prepareStateForCEL converts a classification to the map rules see as email
func prepareStateForCEL(c *email.Classification) map[string]interface{} {
	return map[string]interface{}{
		cel.VarName: map[string]interface{}{
			"intent":  string(c.Intent),
			"urgency": string(c.Urgency),
			"topic":   c.Topic,
		},
	}
}

// validateTable checks every stage entry and compiles every condition
func (r *Router) validateTable() error {
	for stage, rules := range r.table {
		if rules.Fallback == "" {
			return fmt.Errorf("stage %s: fallback route is required", stage)
		}
		for i, rule := range rules.Rules {
			if rule.Condition == "" {
				return fmt.Errorf("stage %s rule %d: condition is required", stage, i)
			}
			if rule.Target == "" {
				return fmt.Errorf("stage %s rule %d: target is required", stage, i)
			}
			if err := r.celEvaluator.ValidateExpression(rule.Condition); err != nil {
				return fmt.Errorf("stage %s rule %d: %w", stage, i, err)
			}
		}
	}
	return nil
}
