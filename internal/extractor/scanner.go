package extractor

import (
	"path"
	"strings"
)

type tokenKind int

const (
	tokText tokenKind = iota
	tokFence
	tokPathMarker
)

// token is the context-free reading of one line; the scanner decides what it means
type token struct {
	kind      tokenKind
	fenceChar byte
	fenceLen  int
	info      string
	path      string
}

// block is a contiguous region of the input that names (or may name) one file
type block struct {
	path   string
	lang   string
	lines  []string
	fenced bool
}

var labels = []string{"file path", "filepath", "file name", "filename", "file", "path", "title"}

var commentPrefixes = []string{"<!--", "//", "/*", "--", "#", ";"}

var knownDotfiles = map[string]bool{
	".env":          true,
	".env.example":  true,
	".gitignore":    true,
	".dockerignore": true,
	".eslintrc":     true,
	".prettierrc":   true,
	".babelrc":      true,
	".editorconfig": true,
	".npmrc":        true,
	".nvmrc":        true,
}

// frameworkNames look like file names but name libraries in headings and bold text
var frameworkNames = map[string]bool{
	"next.js":     true,
	"node.js":     true,
	"vue.js":      true,
	"nuxt.js":     true,
	"react.js":    true,
	"express.js":  true,
	"nest.js":     true,
	"angular.js":  true,
	"ember.js":    true,
	"backbone.js": true,
	"alpine.js":   true,
	"solid.js":    true,
	"three.js":    true,
	"chart.js":    true,
	"d3.js":       true,
	"p5.js":       true,
	"moment.js":   true,
	"day.js":      true,
	"socket.io":   true,
}

func lexLine(line string) token {
	trimmed := strings.TrimSpace(line)
	if ch, n := fenceRun(trimmed); n >= 3 {
		return token{kind: tokFence, fenceChar: ch, fenceLen: n, info: strings.TrimSpace(trimmed[n:])}
	}
	if p, ok := parsePathMarker(trimmed); ok {
		return token{kind: tokPathMarker, path: p}
	}
	return token{kind: tokText}
}

func fenceRun(s string) (byte, int) {
	if s == "" || (s[0] != '`' && s[0] != '~') {
		return 0, 0
	}
	ch := s[0]
	n := 0
	for n < len(s) && s[n] == ch {
		n++
	}
	// backtick fences cannot carry backticks in their info string
	if ch == '`' && strings.ContainsRune(s[n:], '`') {
		return 0, 0
	}
	return ch, n
}

// parsePathMarker recognizes lines such as "// filepath: src/a.ts", "**File: a.py**",
// "### `src/app.tsx`" or "<!-- path: README.md -->".
func parsePathMarker(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, prefix := range commentPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimLeft(s[len(prefix):], prefix[:1])
			s = strings.TrimSpace(s)
			s = strings.TrimSuffix(s, "-->")
			s = strings.TrimSuffix(s, "*/")
			break
		}
	}
	s = trimDecoration(s)

	labeled := false
	if rest, ok := cutLabel(s); ok {
		s = trimDecoration(rest)
		labeled = true
	}
	if s == "" || strings.ContainsAny(s, " \t") {
		return "", false
	}
	if !looksLikePath(s, !labeled) {
		return "", false
	}
	return s, true
}

func trimDecoration(s string) string {
	for {
		before := s
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, ":")
		for _, wrap := range []string{"**", "__", "`", "'", "\""} {
			if len(s) >= 2*len(wrap) && strings.HasPrefix(s, wrap) && strings.HasSuffix(s, wrap) {
				s = s[len(wrap) : len(s)-len(wrap)]
			}
		}
		if s == before {
			return s
		}
	}
}

func cutLabel(s string) (string, bool) {
	if rest, ok := splitLabel(s); ok {
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// looksLikePath is strict when no explicit label named the value as a path
func looksLikePath(s string, strict bool) bool {
	s = strings.Trim(s, "`'\"*")
	if s == "" || strings.ContainsAny(s, " \t<>|?*\"'`()[]{},;") || strings.Contains(s, "://") {
		return false
	}
	if strings.HasSuffix(s, "/") || strings.HasSuffix(s, ".") {
		return false
	}
	base := path.Base(s)
	lowerBase := strings.ToLower(base)
	if strict && base == s && frameworkNames[lowerBase] {
		return false
	}
	if _, ok := basenameLanguages[lowerBase]; ok {
		return true
	}
	if strings.HasPrefix(base, ".") && !strings.Contains(base[1:], ".") {
		return knownDotfiles[lowerBase] || !strict
	}

	ext := strings.ToLower(path.Ext(base))
	if !validExtension(ext) {
		return false
	}
	if !strict {
		return true
	}
	_, known := extensionLanguages[ext]
	return known || dependencyManifests[lowerBase] || (strings.Contains(s, "/") && len(ext) <= 6)
}

func validExtension(ext string) bool {
	if len(ext) < 2 || len(ext) > 11 {
		return false
	}
	hasLetter := false
	for _, r := range ext[1:] {
		switch {
		case r >= 'a' && r <= 'z':
			hasLetter = true
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return hasLetter
}

// parseInfo splits a fence info string into an optional path and language tag.
// Accepted shapes include "ts", "ts src/a.ts", "filename: a.py", "python:main.py"
// and `title="src/a.go"`.
func parseInfo(info string) (p, lang string) {
	fields := strings.Fields(info)
	for i := 0; i < len(fields); i++ {
		f := strings.Trim(fields[i], "{}")
		lower := strings.ToLower(f)

		if value, ok := splitLabel(f); ok {
			if value == "" && i+1 < len(fields) {
				i++
				value = fields[i]
			}
			value = trimDecoration(value)
			if p == "" && looksLikePath(value, false) {
				p = value
			}
			continue
		}

		if before, after, ok := strings.Cut(f, ":"); ok && before != "" {
			after = trimDecoration(after)
			if lang == "" {
				lang = before
			}
			if p == "" && after != "" && looksLikePath(after, false) {
				p = after
			}
			continue
		}

		if p == "" && looksLikePath(f, true) {
			p = trimDecoration(f)
			continue
		}
		if lang == "" {
			lang = lower
		}
	}
	return p, lang
}

// splitLabel cuts a leading "file:", "path=" style label and returns what follows it
func splitLabel(s string) (string, bool) {
	for _, label := range labels {
		if len(s) < len(label) || !strings.EqualFold(s[:len(label)], label) {
			continue
		}
		rest := strings.TrimLeft(s[len(label):], " \t")
		if strings.HasPrefix(rest, ":") || strings.HasPrefix(rest, "=") {
			return rest[1:], true
		}
	}
	return "", false
}

func isCommentLine(s string) bool {
	s = strings.TrimSpace(s)
	for _, prefix := range commentPrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// scanner walks the input line by line. Outside a fence it tracks a pending
// marker section; inside a fence it tracks nesting depth until the matching close.
type scanner struct {
	lines  []string
	pos    int
	blocks []block

	pending *block

	fence      *block
	fenceChar  byte
	fenceLen   int
	depth      int
	awaitFirst bool
}

func scan(text string) []block {
	s := &scanner{lines: strings.Split(text, "\n")}
	for i, line := range s.lines {
		s.pos = i
		tok := lexLine(line)
		if s.fence != nil {
			s.inFence(line, tok)
			continue
		}
		switch tok.kind {
		case tokFence:
			s.openFence(tok)
		case tokPathMarker:
			s.closePending()
			s.pending = &block{path: tok.path}
		default:
			if s.pending != nil {
				s.pending.lines = append(s.pending.lines, line)
			}
		}
	}
	if s.fence != nil {
		s.closeFence()
	}
	s.closePending()
	return s.blocks
}

func (s *scanner) openFence(tok token) {
	p, lang := parseInfo(tok.info)
	b := &block{path: p, lang: lang, fenced: true}
	if s.pending != nil {
		if b.path == "" {
			// the marker names this fence; prose between them is commentary
			b.path = s.pending.path
			s.pending = nil
		} else {
			s.closePending()
		}
	}
	s.fence = b
	s.fenceChar = tok.fenceChar
	s.fenceLen = tok.fenceLen
	s.depth = 0
	s.awaitFirst = b.path == ""
}

func (s *scanner) inFence(line string, tok token) {
	first := s.awaitFirst && strings.TrimSpace(line) != ""
	if first {
		s.awaitFirst = false
	}

	if tok.kind == tokFence && tok.fenceChar == s.fenceChar {
		if tok.info == "" {
			if s.depth > 0 {
				s.depth--
				s.fence.lines = append(s.fence.lines, line)
				return
			}
			if tok.fenceLen >= s.fenceLen {
				s.closeFence()
				return
			}
		} else {
			if s.depth == 0 && tok.fenceLen >= s.fenceLen {
				// an opening fence that names a new file implies the previous one was left open
				if p, _ := parseInfo(tok.info); p != "" {
					s.closeFence()
					s.openFence(tok)
					return
				}
			}
			s.depth++
			s.fence.lines = append(s.fence.lines, line)
			return
		}
	}

	if first && tok.kind == tokPathMarker && isCommentLine(line) {
		s.fence.path = tok.path
		return
	}
	if tok.kind == tokPathMarker && s.depth == 0 && s.nextOpensFence() {
		// a marker announcing the next fence implies the current one was left open
		s.closeFence()
		s.pending = &block{path: tok.path}
		return
	}
	s.fence.lines = append(s.fence.lines, line)
}

// nextOpensFence reports whether the next non-blank line opens a fence that
// could not close the current one
func (s *scanner) nextOpensFence() bool {
	for _, line := range s.lines[s.pos+1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		tok := lexLine(line)
		return tok.kind == tokFence && tok.fenceChar == s.fenceChar && tok.info != "" && tok.fenceLen >= s.fenceLen
	}
	return false
}

func (s *scanner) closeFence() {
	s.blocks = append(s.blocks, *s.fence)
	s.fence = nil
	s.depth = 0
	s.awaitFirst = false
}

func (s *scanner) closePending() {
	if s.pending == nil {
		return
	}
	if trimBody(s.pending.lines) != "" {
		s.blocks = append(s.blocks, *s.pending)
	}
	s.pending = nil
}

// trimBody drops blank lines around the body and any trailing whitespace
func trimBody(lines []string) string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	if start == end {
		return ""
	}
	body := strings.Join(lines[start:end], "\n")
	return strings.TrimRight(body, " \t")
}
