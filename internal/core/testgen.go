package core

import (
	"context"
	"fmt"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"jira_code_agent/internal/extractor"
	"jira_code_agent/pkg"
)

// TestFileName places a test next to its source using the framework's naming convention.
// An empty framework is inferred from the source language.
func TestFileName(source, framework string) string {
	dir, base := path.Split(source)
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)

	switch testConvention(framework, ext) {
	case "pytest":
		return dir + "test_" + name + ".py"
	case "junit":
		return dir + upperFirst(name) + "Test" + orDefault(ext, ".java")
	case "go":
		return dir + name + "_test.go"
	default:
		return dir + name + ".test" + ext
	}
}

func testConvention(framework, ext string) string {
	switch strings.ToLower(strings.TrimSpace(framework)) {
	case "pytest", "unittest":
		return "pytest"
	case "junit", "testng":
		return "junit"
	case "go", "gotest", "testing":
		return "go"
	case "jest", "vitest", "mocha":
		return "jest"
	}
	switch ext {
	case ".py":
		return "pytest"
	case ".java", ".kt":
		return "junit"
	case ".go":
		return "go"
	}
	return "jest"
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// generateTests asks for one test file per source artifact. It never touches the session.
func (e *Engine) generateTests(ctx context.Context, sources []pkg.Artifact, opts pkg.GenerationOptions) ([]pkg.Artifact, int, error) {
	var (
		tests  []pkg.Artifact
		tokens int
	)
	for _, source := range sources {
		if source.Kind != pkg.KindSource {
			continue
		}
		req := pkg.TextRequest{
			Prompt:        buildTestPrompt(source, opts),
			SystemMessage: e.config.Prompts.TestSystem,
			MaxTokens:     e.config.Tokens.Test,
		}
		result, err := withStepTimeout(ctx, e.config.Workflow.StepTimeout, func(ctx context.Context) (*pkg.TextResult, error) {
			return e.gen.Generate(ctx, req)
		})
		if err != nil {
			return tests, tokens, fmt.Errorf("generate tests for %s: %w", source.Path, err)
		}
		tokens += result.TokensUsed
		if strings.TrimSpace(result.Content) == "" {
			return tests, tokens, fmt.Errorf("generate tests for %s: empty response", source.Path)
		}

		testPath := TestFileName(source.Path, opts.TestFramework)
		tests = append(tests, testArtifact(e.extractor, result.Content, testPath, source.Language))
	}
	return tests, tokens, nil
}

// DocFileName places the documentation for source under docs/. Names already in
// taken fall back to a name built from the full source path.
func DocFileName(source string, taken map[string]bool) string {
	base := path.Base(source)
	name := "docs/" + strings.TrimSuffix(base, path.Ext(base)) + ".md"
	if !taken[name] {
		return name
	}
	flat := strings.TrimSuffix(source, path.Ext(source))
	return "docs/" + strings.ReplaceAll(flat, "/", "_") + ".md"
}

// generateDocs asks for one Markdown document per source artifact that has none yet.
// It never touches the session.
func (e *Engine) generateDocs(ctx context.Context, artifacts []pkg.Artifact) ([]pkg.Artifact, int, error) {
	taken := make(map[string]bool, len(artifacts))
	for _, a := range artifacts {
		taken[a.Path] = true
	}

	var (
		docs   []pkg.Artifact
		tokens int
	)
	for _, source := range artifacts {
		if source.Kind != pkg.KindSource {
			continue
		}
		docPath := DocFileName(source.Path, taken)
		if taken[docPath] {
			continue
		}

		req := pkg.TextRequest{
			Prompt:        buildDocumentationPrompt(source),
			SystemMessage: e.config.Prompts.DocumentationSystem,
			MaxTokens:     e.config.Tokens.Documentation,
		}
		result, err := withStepTimeout(ctx, e.config.Workflow.StepTimeout, func(ctx context.Context) (*pkg.TextResult, error) {
			return e.gen.Generate(ctx, req)
		})
		if err != nil {
			return docs, tokens, fmt.Errorf("document %s: %w", source.Path, err)
		}
		tokens += result.TokensUsed
		content := strings.TrimSpace(result.Content)
		if content == "" {
			return docs, tokens, fmt.Errorf("document %s: empty response", source.Path)
		}

		taken[docPath] = true
		doc := pkg.NewArtifact(docPath, content, pkg.KindDocumentation, "markdown")
		doc.Description = "Documentation for " + source.Path
		docs = append(docs, doc)
	}
	return docs, tokens, nil
}

// testArtifact keeps the first extracted block as the test body under the conventional name
func testArtifact(x *extractor.Extractor, content, testPath, language string) pkg.Artifact {
	extracted := x.Extract(content, extractor.Options{DefaultStyle: language, FallbackPath: testPath})
	for _, a := range extracted {
		if a.Kind == pkg.KindTest {
			return pkg.NewArtifact(testPath, a.Content, pkg.KindTest, language)
		}
	}
	return pkg.NewArtifact(testPath, extracted[0].Content, pkg.KindTest, language)
}
