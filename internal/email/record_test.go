package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReviewDecision_Body(t *testing.T) {
	cases := []struct {
		name     string
		decision ReviewDecision
		expected string
	}{
		{name: "draft", decision: ReviewDecision{Approved: true}, expected: "draft"},
		{name: "edited", decision: ReviewDecision{Approved: true, EditedResponse: "edited"}, expected: "edited"},
		{name: "blank edit", decision: ReviewDecision{Approved: true, EditedResponse: " \n\t"}, expected: "draft"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.decision.Body("draft"))
		})
	}
}

func TestReviewDecision_Edited(t *testing.T) {
	assert.False(t, ReviewDecision{EditedResponse: "   "}.Edited())
	assert.True(t, ReviewDecision{EditedResponse: " ok "}.Edited())
}

func TestFormatTrail(t *testing.T) {
	assert.Equal(t, "read -> classify -> review", FormatTrail([]Stage{StageRead, StageClassify, StageReview}))
	assert.Equal(t, "", FormatTrail(nil))
}

func TestRecordReplySubject(t *testing.T) {
	assert.Equal(t, "Re: Help", (&Record{Subject: "Help"}).ReplySubject())
	assert.Equal(t, "Re: export", (&Record{Classification: &Classification{Topic: "export"}}).ReplySubject())
	assert.Equal(t, "Re: your email", (&Record{}).ReplySubject())
}
