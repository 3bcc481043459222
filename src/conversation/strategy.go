package conversation

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"jira_code_agent/pkg"
)

type ContextStrategy interface {
	BuildContext(messages []*schema.Message) string
	GetMaxTurns() int
}

// ====================== Review ======================
// ReviewContextStrategy renders the last N review rounds for revision prompts
type ReviewContextStrategy struct {
	maxTurns int
}

func NewReviewContextStrategy(maxTurns int) *ReviewContextStrategy {
	if maxTurns < 0 {
		maxTurns = 0
	}
	return &ReviewContextStrategy{maxTurns: maxTurns}
}

func (s *ReviewContextStrategy) GetMaxTurns() int {
	return s.maxTurns
}

func (s *ReviewContextStrategy) BuildContext(messages []*schema.Message) string {
	recent := trimTail(messages, s.maxTurns)
	if len(recent) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("<review_history>\n")

	for _, msg := range recent {
		switch msg.Role {
		case schema.User:
			b.WriteString("Reviewer(" + msg.Content + ")\n")
		case schema.Assistant:
			b.WriteString("Assistant(" + msg.Content + ")\n")
		}
	}

	b.WriteString("</review_history>")
	return b.String()
}

// FeedbackMessages renders review rounds as reviewer turns, oldest first
func FeedbackMessages(history []pkg.Feedback) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history))
	for i, fb := range history {
		var b strings.Builder
		fmt.Fprintf(&b, "round %d, %s: %s", i+1, fb.Decision, strings.TrimSpace(fb.Text))
		if len(fb.SpecificIssues) > 0 {
			b.WriteString("; issues: " + strings.Join(fb.SpecificIssues, ", "))
		}
		if len(fb.ImprovementRequests) > 0 {
			b.WriteString("; requests: " + strings.Join(fb.ImprovementRequests, ", "))
		}
		if len(fb.PriorityChanges) > 0 {
			b.WriteString("; priorities: " + strings.Join(fb.PriorityChanges, ", "))
		}
		messages = append(messages, schema.UserMessage(b.String()))
	}
	return messages
}

func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}
