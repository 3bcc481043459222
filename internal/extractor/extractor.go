// Package extractor turns raw generated text into typed, named artifacts.
//
// The input is read as a small line grammar: fence-open (``` or ~~~ plus an
// optional info string carrying a language tag and/or a path), body, fence-close,
// and stand-alone path marker lines ("// filepath: x", "**File: x**", "### x.ts").
// Every fenced block and every unfenced marker section is one file boundary.
// Extraction never fails: text without boundaries becomes a single artifact.
package extractor

import (
	"fmt"
	"path"
	"strings"

	"jira_code_agent/pkg"
)

// Options control defaults for paths and languages the text does not name
type Options struct {
	// DefaultStyle is the requested code style, e.g. "typescript"
	DefaultStyle string
	// FallbackPath replaces main.<ext> for text without boundaries; its kind is classified from the path
	FallbackPath string
}

// Extractor is stateless and safe for concurrent use
type Extractor struct{}

// New creates an Extractor
func New() *Extractor {
	return &Extractor{}
}

// Extract parses text into a non-empty, deterministic, ordered artifact list
func (e *Extractor) Extract(text string, opts Options) []pkg.Artifact {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	style := NormalizeLanguage(opts.DefaultStyle)

	var (
		artifacts []pkg.Artifact
		fenced    []bool
		index     = map[string]int{}
		unnamed   int
	)

	for _, b := range scan(normalized) {
		content := trimBody(b.lines)

		p := cleanPath(b.path)
		var lang string
		if p == "" {
			if content == "" {
				continue
			}
			unnamed++
			lang = style
			if b.lang != "" {
				lang = NormalizeLanguage(b.lang)
				if _, ok := languageExtensions[lang]; !ok {
					lang = style
				}
			}
			p = fmt.Sprintf("generated_file_%d%s", unnamed, DefaultExtension(lang))
			lang = synthesizedLanguage(p, lang)
		} else {
			lang = Language(p, style)
		}

		artifact := pkg.NewArtifact(p, content, Classify(p), lang)
		if i, seen := index[p]; seen {
			if b.fenced && !fenced[i] {
				artifacts[i] = artifact
				fenced[i] = true
			}
			continue
		}
		index[p] = len(artifacts)
		artifacts = append(artifacts, artifact)
		fenced = append(fenced, b.fenced)
	}

	if len(artifacts) == 0 {
		return []pkg.Artifact{fallback(text, style, opts.FallbackPath)}
	}
	return artifacts
}

func fallback(text, style, fallbackPath string) pkg.Artifact {
	if p := cleanPath(fallbackPath); p != "" {
		return pkg.NewArtifact(p, text, Classify(p), Language(p, style))
	}
	p := "main" + DefaultExtension(style)
	return pkg.NewArtifact(p, text, pkg.KindSource, synthesizedLanguage(p, style))
}

// synthesizedLanguage keeps the requested style for generated names whose
// extension says nothing, e.g. main.txt for "haskell"
func synthesizedLanguage(p, style string) string {
	if _, known := languageExtensions[style]; !known {
		return style
	}
	return Language(p, style)
}

// cleanPath normalizes to a forward-slash relative path; paths escaping the root are dropped
func cleanPath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return ""
	}
	p = path.Clean(strings.TrimLeft(p, "/"))
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return ""
	}
	return p
}
