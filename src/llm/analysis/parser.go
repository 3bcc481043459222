package analysis

import (
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"jira_code_agent/pkg"
)

const (
	defaultComplexity     = 5
	defaultEstimatedFiles = 3
)

// rawAnalysis accepts numbers or numeric strings from the model
type rawAnalysis struct {
	Requirements          []string `json:"requirements"`
	TechnicalSpecs        []string `json:"technical_specs"`
	AcceptanceCriteria    []string `json:"acceptance_criteria"`
	ComplexityScore       any      `json:"complexity_score"`
	EstimatedFiles        any      `json:"estimated_files"`
	SuggestedTechnologies []string `json:"suggested_technologies"`
	Dependencies          []string `json:"dependencies"`
}

// Parse turns the model's reply into an analysis. It never fails: a JSON object is
// preferred, bullet sections are the fallback, and unparseable JSON yields Fallback.
func Parse(response, itemKey string) *pkg.Analysis {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return parseSections(response, itemKey)
	}

	var raw rawAnalysis
	if err := sonic.UnmarshalString(response[start:end+1], &raw); err != nil {
		return Fallback(itemKey)
	}

	return &pkg.Analysis{
		ItemKey:               itemKey,
		Requirements:          nonNil(raw.Requirements),
		TechnicalSpecs:        nonNil(raw.TechnicalSpecs),
		AcceptanceCriteria:    nonNil(raw.AcceptanceCriteria),
		ComplexityScore:       clamp(toInt(raw.ComplexityScore, defaultComplexity), 1, 10),
		EstimatedFiles:        max(1, toInt(raw.EstimatedFiles, defaultEstimatedFiles)),
		SuggestedTechnologies: nonNil(raw.SuggestedTechnologies),
		Dependencies:          nonNil(raw.Dependencies),
	}
}

// Fallback is the analysis used when the reply cannot be understood at all
func Fallback(itemKey string) *pkg.Analysis {
	return &pkg.Analysis{
		ItemKey:               itemKey,
		Requirements:          []string{"Implement functionality as described in ticket"},
		TechnicalSpecs:        []string{"Follow project coding standards"},
		AcceptanceCriteria:    []string{"Code should compile and run without errors"},
		ComplexityScore:       defaultComplexity,
		EstimatedFiles:        defaultEstimatedFiles,
		SuggestedTechnologies: []string{"javascript", "typescript"},
		Dependencies:          []string{},
	}
}

// parseSections collects "- item" bullets under requirement, technical and acceptance headings
func parseSections(response, itemKey string) *pkg.Analysis {
	var (
		section                   *[]string
		requirements, specs, crit []string
	)
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if item, ok := bullet(line); ok {
			if section != nil && item != "" {
				*section = append(*section, item)
			}
			continue
		}

		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "acceptance") || strings.Contains(lower, "criteria"):
			section = &crit
		case strings.Contains(lower, "technical") || strings.Contains(lower, "spec"):
			section = &specs
		case strings.Contains(lower, "requirement"):
			section = &requirements
		}
	}

	return &pkg.Analysis{
		ItemKey:               itemKey,
		Requirements:          orDefault(requirements, "Implement functionality as described"),
		TechnicalSpecs:        orDefault(specs, "Follow standard coding practices"),
		AcceptanceCriteria:    orDefault(crit, "Code should work as expected"),
		ComplexityScore:       defaultComplexity,
		EstimatedFiles:        defaultEstimatedFiles,
		SuggestedTechnologies: []string{"javascript", "typescript"},
		Dependencies:          []string{},
	}
}

func bullet(line string) (string, bool) {
	for _, prefix := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):]), true
		}
	}
	return "", false
}

func toInt(v any, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return def
}

func clamp(v, lo, hi int) int {
	return min(hi, max(lo, v))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orDefault(s []string, def string) []string {
	if len(s) == 0 {
		return []string{def}
	}
	return s
}
