package core

import (
	"fmt"
	"strings"

	"jira_code_agent/pkg"
)

// delimiterSyntax is the lexical shape needed to find brackets outside strings and comments
type delimiterSyntax struct {
	quotes        string
	lineComment   string
	blockComments bool
	tripleQuotes  bool
}

var (
	cLike      = delimiterSyntax{quotes: `"'`, lineComment: "//", blockComments: true}
	scriptLike = delimiterSyntax{quotes: "\"'`", lineComment: "//", blockComments: true}
)

var syntaxByLanguage = map[string]delimiterSyntax{
	"javascript": scriptLike,
	"typescript": scriptLike,
	"go":         scriptLike,
	"java":       cLike,
	"kotlin":     cLike,
	"scala":      cLike,
	"c":          cLike,
	"cpp":        cLike,
	"csharp":     cLike,
	"swift":      cLike,
	"php":        cLike,
	"rust":       {quotes: `"`, lineComment: "//", blockComments: true},
	"python":     {quotes: `"'`, lineComment: "#", tripleQuotes: true},
	"ruby":       {quotes: `"'`, lineComment: "#"},
}

var closers = map[byte]byte{')': '(', ']': '[', '}': '{'}

// SyntaxWarnings runs a structural delimiter check over source and test artifacts.
// Languages without a known lexical shape are skipped.
func SyntaxWarnings(artifacts []pkg.Artifact) []string {
	var warnings []string
	for _, a := range artifacts {
		if a.Kind != pkg.KindSource && a.Kind != pkg.KindTest {
			continue
		}
		syntax, ok := syntaxByLanguage[a.Language]
		if !ok {
			continue
		}
		if problem := checkDelimiters(a.Content, syntax); problem != "" {
			warnings = append(warnings, fmt.Sprintf("Potential syntax issue in %s: %s", a.Path, problem))
		}
	}
	return warnings
}

type opening struct {
	char byte
	line int
}

// checkDelimiters reports the first unbalanced bracket, or "" when all are balanced
func checkDelimiters(src string, syntax delimiterSyntax) string {
	var stack []opening
	line := 1

	for i := 0; i < len(src); i++ {
		c := src[i]
		rest := src[i:]

		switch {
		case c == '\n':
			line++

		case syntax.lineComment != "" && strings.HasPrefix(rest, syntax.lineComment):
			if end := strings.IndexByte(rest, '\n'); end >= 0 {
				i += end - 1
			} else {
				i = len(src)
			}

		case syntax.blockComments && strings.HasPrefix(rest, "/*"):
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				return fmt.Sprintf("unterminated comment from line %d", line)
			}
			line += strings.Count(rest[:end+2], "\n")
			i += end + 3

		case syntax.tripleQuotes && (strings.HasPrefix(rest, `"""`) || strings.HasPrefix(rest, "'''")):
			end := strings.Index(rest[3:], rest[:3])
			if end < 0 {
				return fmt.Sprintf("unterminated string from line %d", line)
			}
			line += strings.Count(rest[:end+3], "\n")
			i += end + 5

		case strings.IndexByte(syntax.quotes, c) >= 0:
			n, lines, closed := skipString(rest, c)
			if !closed && c == '`' {
				return fmt.Sprintf("unterminated string from line %d", line)
			}
			line += lines
			i += n - 1

		case c == '(' || c == '[' || c == '{':
			stack = append(stack, opening{char: c, line: line})

		case closers[c] != 0:
			if len(stack) == 0 || stack[len(stack)-1].char != closers[c] {
				return fmt.Sprintf("unexpected '%c' on line %d", c, line)
			}
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) > 0 {
		open := stack[len(stack)-1]
		return fmt.Sprintf("unclosed '%c' from line %d", open.char, open.line)
	}
	return ""
}

// skipString measures the string literal opening s. Only backtick strings span
// lines; other quotes end at the line break even when unterminated.
func skipString(s string, quote byte) (n, lines int, closed bool) {
	for j := 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			if quote == '`' {
				continue
			}
			j++
			if j < len(s) && s[j] == '\n' {
				lines++
			}
		case quote:
			return j + 1, lines, true
		case '\n':
			if quote != '`' {
				return j, lines, false
			}
			lines++
		}
	}
	return len(s), lines, false
}
