package conversation

import (
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira_code_agent/pkg"
)

func TestFeedbackMessages(t *testing.T) {
	history := []pkg.Feedback{
		{Decision: pkg.DecisionRejected, Text: " add validation ", SpecificIssues: []string{"null input"}},
		{Decision: pkg.DecisionRejected, Text: "rename sum", ImprovementRequests: []string{"use add"}, PriorityChanges: []string{"naming first"}, SubmittedAt: time.Now()},
	}

	messages := FeedbackMessages(history)
	require.Len(t, messages, 2)
	assert.Equal(t, schema.User, messages[0].Role)
	assert.Equal(t, "round 1, rejected: add validation; issues: null input", messages[0].Content)
	assert.Equal(t, "round 2, rejected: rename sum; requests: use add; priorities: naming first", messages[1].Content)
}

func TestReviewContextStrategy_BuildContext(t *testing.T) {
	messages := []*schema.Message{
		schema.UserMessage("one"),
		schema.AssistantMessage("ack", nil),
		schema.UserMessage("two"),
		schema.UserMessage("three"),
	}

	s := NewReviewContextStrategy(2)
	assert.Equal(t, 2, s.GetMaxTurns())
	assert.Equal(t, "<review_history>\nReviewer(two)\nReviewer(three)\n</review_history>", s.BuildContext(messages))

	all := NewReviewContextStrategy(10).BuildContext(messages)
	assert.Contains(t, all, "Assistant(ack)")
	assert.Contains(t, all, "Reviewer(one)")
}

func TestReviewContextStrategy_Empty(t *testing.T) {
	assert.Equal(t, "", NewReviewContextStrategy(3).BuildContext(nil))

	disabled := NewReviewContextStrategy(-1)
	assert.Equal(t, 0, disabled.GetMaxTurns())
	assert.Equal(t, "", disabled.BuildContext([]*schema.Message{schema.UserMessage("x")}))
}
