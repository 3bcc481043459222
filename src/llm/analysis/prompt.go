package analysis

import (
	"strings"

	"jira_code_agent/pkg"
)

const SystemMessage = "You are an expert software analyst. Analyze JIRA tickets and extract structured requirements for code generation."

const analysisPrompt = `Analyze the following JIRA ticket and extract structured requirements:

**Ticket Key:** {key}
**Summary:** {summary}
**Type:** {issue_type}
**Priority:** {priority}
**Description:**
{description}

**Labels:** {labels}
**Components:** {components}

Please provide a structured analysis in the following JSON format:
{
    "requirements": ["list of functional requirements"],
    "technical_specs": ["list of technical specifications"],
    "acceptance_criteria": ["list of acceptance criteria"],
    "complexity_score": 1-10,
    "estimated_files": estimated_number_of_files,
    "suggested_technologies": ["recommended technologies/frameworks"],
    "dependencies": ["required dependencies/libraries"]
}

Focus on:
1. What functionality needs to be implemented
2. Technical constraints and requirements
3. Expected behavior and outcomes
4. Performance considerations
5. Integration requirements
`

// BuildPrompt fills the analysis template with the ticket fields
func BuildPrompt(item *pkg.ItemData) string {
	r := strings.NewReplacer(
		"{key}", item.Key,
		"{summary}", item.Summary,
		"{issue_type}", orNone(item.IssueType),
		"{priority}", orNone(item.Priority),
		"{description}", orNone(strings.TrimSpace(item.Description)),
		"{labels}", orNone(strings.Join(item.Labels, ", ")),
		"{components}", orNone(strings.Join(item.Components, ", ")),
	)
	return r.Replace(analysisPrompt)
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
