package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vars(intent, urgency string) map[string]interface{} {
	return map[string]interface{}{
		VarName: map[string]interface{}{
			"intent":  intent,
			"urgency": urgency,
		},
	}
}

func TestEvaluateBool(t *testing.T) {
	e, err := NewEvaluator()
	require.NoError(t, err)

	ctx := context.Background()

	cases := []struct {
		expr     string
		vars     map[string]interface{}
		expected bool
	}{
		{expr: "email.intent == 'billing'", vars: vars("billing", "low"), expected: true},
		{expr: "email.intent == 'billing'", vars: vars("bug", "low"), expected: false},
		{expr: "email.urgency in ['high', 'critical']", vars: vars("bug", "critical"), expected: true},
		{expr: "email.urgency in ['high', 'critical']", vars: vars("bug", "medium"), expected: false},
	}

	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := e.EvaluateBool(ctx, tc.expr, tc.vars)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestEvaluateBool_NonBoolean(t *testing.T) {
	e, err := NewEvaluator()
	require.NoError(t, err)

	_, err = e.EvaluateBool(context.Background(), "email.intent", vars("bug", "low"))
	assert.Error(t, err)
}

func TestValidateExpression(t *testing.T) {
	e, err := NewEvaluator()
	require.NoError(t, err)

	assert.NoError(t, e.ValidateExpression("email.intent == 'bug'"))
	assert.Error(t, e.ValidateExpression("email.intent =="))
	assert.Error(t, e.ValidateExpression("unknown.field == 1"))
}

func TestProgramCache(t *testing.T) {
	e, err := NewEvaluator()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "email.intent == 'bug'", vars("bug", "low"))
	require.NoError(t, err)
	assert.Len(t, e.cache, 1)

	e.ClearCache()
	assert.Empty(t, e.cache)
}
