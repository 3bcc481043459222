package core

import (
	"fmt"
	"strings"

	"jira_code_agent/pkg"
)

const outputFormat = "Please provide multiple files in the following format:\n\n" +
	"```filename: path/to/file.ext\n// File content here\n```\n"

// buildGenerationPrompt renders the first-pass request from an analyzed item
func buildGenerationPrompt(item *pkg.ItemData, analysis *pkg.Analysis, opts pkg.GenerationOptions) string {
	var b strings.Builder

	b.WriteString("Generate complete, production-ready code for the following ticket.\n\n")
	if item != nil {
		fmt.Fprintf(&b, "**TICKET:** %s - %s\n", item.Key, item.Summary)
		if desc := strings.TrimSpace(item.Description); desc != "" {
			fmt.Fprintf(&b, "\n**DESCRIPTION:**\n%s\n", desc)
		}
		b.WriteString("\n")
	}

	if analysis != nil {
		b.WriteString("**FUNCTIONAL REQUIREMENTS:**\n")
		for i, req := range analysis.Requirements {
			fmt.Fprintf(&b, "%d. %s\n", i+1, req)
		}
		writeBullets(&b, "TECHNICAL SPECIFICATIONS", analysis.TechnicalSpecs)
		writeBullets(&b, "ACCEPTANCE CRITERIA", analysis.AcceptanceCriteria)
		if len(analysis.SuggestedTechnologies) > 0 {
			fmt.Fprintf(&b, "\n**SUGGESTED TECHNOLOGIES:** %s\n", strings.Join(analysis.SuggestedTechnologies, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("**CODE GENERATION SETTINGS:**\n")
	fmt.Fprintf(&b, "- Language/Style: %s\n", opts.CodeStyle)
	fmt.Fprintf(&b, "- Framework: %s\n", opts.Framework)
	fmt.Fprintf(&b, "- Architecture Pattern: %s\n", orDefault(opts.ArchitecturePattern, "Standard"))
	fmt.Fprintf(&b, "- Generate Tests: %t\n", opts.GenerateTests)
	if opts.GenerateTests {
		fmt.Fprintf(&b, "- Test Framework: %s\n", opts.TestFramework)
	}
	fmt.Fprintf(&b, "- Include Documentation: %t\n", opts.IncludeDocumentation)
	fmt.Fprintf(&b, "- Max File Size: %d lines\n", opts.MaxFileSize)
	fmt.Fprintf(&b, "- Database Type: %s\n", orDefault(opts.DatabaseType, "Not specified"))
	fmt.Fprintf(&b, "- API Style: %s\n\n", orDefault(opts.APIStyle, "REST"))

	b.WriteString("**OUTPUT FORMAT:**\n")
	b.WriteString(outputFormat)
	b.WriteString("\n**REQUIREMENTS:**\n")
	b.WriteString("1. Implement all functional requirements\n")
	b.WriteString("2. Follow conventions of the specified language and framework\n")
	b.WriteString("3. Include error handling and input validation\n")
	b.WriteString("4. Keep each file under the max file size\n")
	b.WriteString("5. Structure files logically with separate concerns\n\n")
	b.WriteString("Generate the complete implementation now:\n")

	return b.String()
}

// buildTestPrompt asks for unit tests covering one source artifact
func buildTestPrompt(source pkg.Artifact, opts pkg.GenerationOptions) string {
	var b strings.Builder
	b.WriteString("Generate comprehensive unit tests for the following code:\n\n")
	fmt.Fprintf(&b, "**File: %s**\n", source.Path)
	fmt.Fprintf(&b, "```%s\n%s\n```\n\n", source.Language, source.Content)
	b.WriteString("**Test Requirements:**\n")
	fmt.Fprintf(&b, "- Use the %s testing framework\n", opts.TestFramework)
	b.WriteString("- Test all public methods and functions\n")
	b.WriteString("- Include edge cases and error scenarios\n")
	b.WriteString("- Include setup and teardown if needed\n\n")
	b.WriteString("Generate only the test code:\n")
	return b.String()
}

// buildDocumentationPrompt asks for Markdown documentation of one source artifact
func buildDocumentationPrompt(source pkg.Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate comprehensive documentation for this %s code:\n\n", source.Language)
	fmt.Fprintf(&b, "**File: %s**\n", source.Path)
	fmt.Fprintf(&b, "```%s\n%s\n```\n\n", source.Language, source.Content)
	b.WriteString("Cover the overall purpose, each function or method with its parameters and return values, ")
	b.WriteString("usage examples, and any notes on complexity or performance.\n")
	b.WriteString("Reply with the Markdown document only.\n")
	return b.String()
}

// buildImprovementPrompt renders a revision request from the current artifacts and feedback
func buildImprovementPrompt(artifacts []pkg.Artifact, fb pkg.Feedback, history string) string {
	var b strings.Builder

	b.WriteString("Improve the following code based on user feedback.\n\n")
	b.WriteString("**Current Code:**\n")
	for _, a := range artifacts {
		fmt.Fprintf(&b, "**File: %s**\n", a.Path)
		fmt.Fprintf(&b, "```%s\n%s\n```\n\n", a.Language, a.Content)
	}

	if history != "" {
		b.WriteString("**Previous Review Rounds:**\n")
		b.WriteString(history)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "**User Feedback:**\n%s\n", strings.TrimSpace(fb.Text))
	writeBullets(&b, "Specific Issues to Address", fb.SpecificIssues)
	writeBullets(&b, "Improvement Requests", fb.ImprovementRequests)
	writeBullets(&b, "Priority Changes", fb.PriorityChanges)

	b.WriteString("\n**OUTPUT FORMAT:**\n")
	b.WriteString(outputFormat)
	b.WriteString("\nReturn every file of the improved implementation, addressing all feedback points while keeping the original functionality.\n")

	return b.String()
}

func writeBullets(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n**%s:**\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
