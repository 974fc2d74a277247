package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntent(t *testing.T) {
	cases := []struct {
		in       string
		expected Intent
		wantErr  bool
	}{
		{in: "question", expected: IntentQuestion},
		{in: " Billing ", expected: IntentBilling},
		{in: "COMPLEX", expected: IntentComplex},
		{in: "refund", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseIntent(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidIntent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestParseUrgency(t *testing.T) {
	got, err := ParseUrgency("Critical")
	require.NoError(t, err)
	assert.Equal(t, UrgencyCritical, got)

	_, err = ParseUrgency("urgent")
	assert.ErrorIs(t, err, ErrInvalidUrgency)
}

func TestClassificationValidate(t *testing.T) {
	assert.NoError(t, Classification{Intent: IntentBug, Urgency: UrgencyLow}.Validate())
	assert.ErrorIs(t, Classification{Intent: "spam", Urgency: UrgencyLow}.Validate(), ErrInvalidIntent)
	assert.ErrorIs(t, Classification{Intent: IntentBug, Urgency: "asap"}.Validate(), ErrInvalidUrgency)
}

func TestReplySubject(t *testing.T) {
	r := &Record{Subject: "Double charge"}
	assert.Equal(t, "Re: Double charge", r.ReplySubject())

	r = &Record{Classification: &Classification{Topic: "export"}}
	assert.Equal(t, "Re: export", r.ReplySubject())

	assert.Equal(t, "Re: your email", (&Record{}).ReplySubject())
}

func TestReviewDecisionBody(t *testing.T) {
	assert.Equal(t, "draft", ReviewDecision{Approved: true}.Body("draft"))
	assert.Equal(t, "edited", ReviewDecision{Approved: true, EditedResponse: "edited"}.Body("draft"))
}
