package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira_code_agent/pkg"
)

const fence = "```"

func tsOpts() Options {
	return Options{DefaultStyle: "typescript"}
}

func TestExtract_FenceInfoPaths(t *testing.T) {
	text := strings.Join([]string{
		"Here is the implementation.",
		"",
		fence + "typescript src/components/Login.tsx",
		"export const Login = () => null;",
		fence,
		"",
		fence + "filename: src/components/Login.test.tsx",
		"import { Login } from './Login';",
		"test('renders', () => {});",
		fence,
		"",
		fence + "json package.json",
		`{"name": "app"}`,
		fence,
	}, "\n")

	artifacts := New().Extract(text, tsOpts())
	require.Len(t, artifacts, 3)

	assert.Equal(t, "src/components/Login.tsx", artifacts[0].Path)
	assert.Equal(t, pkg.KindSource, artifacts[0].Kind)
	assert.Equal(t, "typescript", artifacts[0].Language)
	assert.Equal(t, "export const Login = () => null;", artifacts[0].Content)
	assert.Equal(t, 1, artifacts[0].LineCount)

	assert.Equal(t, "src/components/Login.test.tsx", artifacts[1].Path)
	assert.Equal(t, pkg.KindTest, artifacts[1].Kind)
	assert.Equal(t, 2, artifacts[1].LineCount)

	assert.Equal(t, "package.json", artifacts[2].Path)
	assert.Equal(t, pkg.KindDependency, artifacts[2].Kind)
	assert.Equal(t, "json", artifacts[2].Language)
}

func TestExtract_MarkerBeforeFence(t *testing.T) {
	text := strings.Join([]string{
		"**File: src/utils/math.py**",
		"Some explanation of the helper.",
		fence + "python",
		"def add(a, b):",
		"    return a + b",
		fence,
	}, "\n")

	artifacts := New().Extract(text, tsOpts())
	require.Len(t, artifacts, 1)
	assert.Equal(t, "src/utils/math.py", artifacts[0].Path)
	assert.Equal(t, "python", artifacts[0].Language)
	assert.Equal(t, "def add(a, b):\n    return a + b", artifacts[0].Content)
}

func TestExtract_CommentMarkerOnFirstLine(t *testing.T) {
	text := strings.Join([]string{
		fence + "go",
		"// filepath: internal/server/server.go",
		"package server",
		fence,
	}, "\n")

	artifacts := New().Extract(text, Options{DefaultStyle: "go"})
	require.Len(t, artifacts, 1)
	assert.Equal(t, "internal/server/server.go", artifacts[0].Path)
	assert.Equal(t, "package server", artifacts[0].Content)
	assert.Equal(t, "go", artifacts[0].Language)
}

func TestExtract_HeadingMarkers(t *testing.T) {
	text := strings.Join([]string{
		"### `README.md`",
		"",
		fence + "markdown",
		"# Login",
		fence,
		"",
		"### src/config/app.yaml",
		fence + "yaml",
		"port: 8080",
		fence,
	}, "\n")

	artifacts := New().Extract(text, tsOpts())
	require.Len(t, artifacts, 2)
	assert.Equal(t, "README.md", artifacts[0].Path)
	assert.Equal(t, pkg.KindDocumentation, artifacts[0].Kind)
	assert.Equal(t, "# Login", artifacts[0].Content)
	assert.Equal(t, "src/config/app.yaml", artifacts[1].Path)
	assert.Equal(t, pkg.KindConfig, artifacts[1].Kind)
	assert.Equal(t, "yaml", artifacts[1].Language)
}

func TestExtract_MarkerSectionsWithoutFences(t *testing.T) {
	text := strings.Join([]string{
		"// File: src/index.js",
		`console.log("a");`,
		"",
		"// File: src/util.js",
		"module.exports = {};",
	}, "\n")

	artifacts := New().Extract(text, tsOpts())
	require.Len(t, artifacts, 2)
	assert.Equal(t, "src/index.js", artifacts[0].Path)
	assert.Equal(t, `console.log("a");`, artifacts[0].Content)
	assert.Equal(t, "javascript", artifacts[0].Language)
	assert.Equal(t, "src/util.js", artifacts[1].Path)
	assert.Equal(t, "module.exports = {};", artifacts[1].Content)
}

func TestExtract_NoMarkersFallsBackToSingleArtifact(t *testing.T) {
	text := "Just some prose without any code."

	artifacts := New().Extract(text, tsOpts())
	require.Len(t, artifacts, 1)
	assert.Equal(t, "main.ts", artifacts[0].Path)
	assert.Equal(t, pkg.KindSource, artifacts[0].Kind)
	assert.Equal(t, "typescript", artifacts[0].Language)
	assert.Equal(t, text, artifacts[0].Content)
}

func TestExtract_EmptyInput(t *testing.T) {
	artifacts := New().Extract("", Options{DefaultStyle: "python"})
	require.Len(t, artifacts, 1)
	assert.Equal(t, "main.py", artifacts[0].Path)
	assert.Equal(t, "", artifacts[0].Content)
	assert.Equal(t, 0, artifacts[0].LineCount)
}

func TestExtract_FallbackPathIsClassified(t *testing.T) {
	artifacts := New().Extract("it('works', () => {})", Options{
		DefaultStyle: "javascript",
		FallbackPath: "src/login.test.js",
	})
	require.Len(t, artifacts, 1)
	assert.Equal(t, "src/login.test.js", artifacts[0].Path)
	assert.Equal(t, pkg.KindTest, artifacts[0].Kind)
}

func TestExtract_UnclosedFenceRunsToEnd(t *testing.T) {
	text := fence + "python app.py\nprint(\"hi\")\nprint(\"bye\")"

	artifacts := New().Extract(text, tsOpts())
	require.Len(t, artifacts, 1)
	assert.Equal(t, "app.py", artifacts[0].Path)
	assert.Equal(t, "print(\"hi\")\nprint(\"bye\")", artifacts[0].Content)
}

func TestExtract_NestedFencesStayInsideDocument(t *testing.T) {
	text := strings.Join([]string{
		fence + "markdown README.md",
		"# Project",
		"",
		fence + "bash",
		"npm install",
		fence,
		"",
		"Done.",
		fence,
	}, "\n")

	artifacts := New().Extract(text, tsOpts())
	require.Len(t, artifacts, 1)
	assert.Equal(t, "README.md", artifacts[0].Path)
	assert.Equal(t, "# Project\n\n```bash\nnpm install\n```\n\nDone.", artifacts[0].Content)
}

func TestExtract_NamedFenceImplicitlyClosesOpenFence(t *testing.T) {
	text := strings.Join([]string{
		fence + "ts src/a.ts",
		"const a = 1;",
		fence + "ts src/b.ts",
		"const b = 2;",
		fence,
	}, "\n")

	artifacts := New().Extract(text, tsOpts())
	require.Len(t, artifacts, 2)
	assert.Equal(t, "src/a.ts", artifacts[0].Path)
	assert.Equal(t, "const a = 1;", artifacts[0].Content)
	assert.Equal(t, "src/b.ts", artifacts[1].Path)
}

func TestExtract_FrameworkHeadingIsNotAPath(t *testing.T) {
	text := strings.Join([]string{
		"**Next.js**",
		"",
		fence + "tsx",
		"export default function Page() { return null; }",
		fence,
	}, "\n")

	artifacts := New().Extract(text, tsOpts())
	require.Len(t, artifacts, 1)
	assert.Equal(t, "generated_file_1.ts", artifacts[0].Path)
	assert.Equal(t, pkg.KindSource, artifacts[0].Kind)
	assert.Equal(t, "typescript", artifacts[0].Language)
}

func TestExtract_MarkerClosesUnterminatedFence(t *testing.T) {
	text := strings.Join([]string{
		"**File: src/a.ts**",
		fence + "ts",
		"const a = 1",
		"**File: src/b.ts**",
		fence + "ts",
		"const b = 2",
		fence,
	}, "\n")

	artifacts := New().Extract(text, tsOpts())
	require.Len(t, artifacts, 2)
	assert.Equal(t, "src/a.ts", artifacts[0].Path)
	assert.Equal(t, "const a = 1", artifacts[0].Content)
	assert.Equal(t, "src/b.ts", artifacts[1].Path)
	assert.Equal(t, "const b = 2", artifacts[1].Content)
}

func TestExtract_UnknownStyleKeepsLanguage(t *testing.T) {
	artifacts := New().Extract("main = putStrLn \"hi\"", Options{DefaultStyle: "haskell"})
	require.Len(t, artifacts, 1)
	assert.Equal(t, "main.txt", artifacts[0].Path)
	assert.Equal(t, "haskell", artifacts[0].Language)
}

func TestExtract_UnnamedFencesGetGeneratedNames(t *testing.T) {
	text := strings.Join([]string{
		"Intro",
		fence + "python",
		"print(1)",
		fence,
		"More",
		fence,
		"print(2)",
		fence,
		fence + "python",
		fence,
	}, "\n")

	artifacts := New().Extract(text, tsOpts())
	require.Len(t, artifacts, 2)
	assert.Equal(t, "generated_file_1.py", artifacts[0].Path)
	assert.Equal(t, "python", artifacts[0].Language)
	assert.Equal(t, "generated_file_2.ts", artifacts[1].Path)
	assert.Equal(t, "typescript", artifacts[1].Language)
}

func TestExtract_DuplicatePaths(t *testing.T) {
	t.Run("first fenced occurrence wins", func(t *testing.T) {
		text := strings.Join([]string{
			fence + "ts src/a.ts", "one", fence,
			fence + "ts src/a.ts", "two", fence,
		}, "\n")
		artifacts := New().Extract(text, tsOpts())
		require.Len(t, artifacts, 1)
		assert.Equal(t, "one", artifacts[0].Content)
	})

	t.Run("fence replaces earlier marker section", func(t *testing.T) {
		text := strings.Join([]string{
			"// File: src/a.ts",
			"const a = 1;",
			"",
			fence + "ts src/a.ts",
			"const a = 2;",
			fence,
		}, "\n")
		artifacts := New().Extract(text, tsOpts())
		require.Len(t, artifacts, 1)
		assert.Equal(t, "const a = 2;", artifacts[0].Content)
	})
}

func TestExtract_EmptyNamedFenceIsKept(t *testing.T) {
	text := fence + "python pkg/__init__.py\n" + fence + "\n" + fence + "python pkg/core.py\nx = 1\n" + fence

	artifacts := New().Extract(text, Options{DefaultStyle: "python"})
	require.Len(t, artifacts, 2)
	assert.Equal(t, "pkg/__init__.py", artifacts[0].Path)
	assert.Equal(t, "", artifacts[0].Content)
	assert.Equal(t, 0, artifacts[0].LineCount)
}

func TestExtract_PathsEscapingRootAreRenamed(t *testing.T) {
	text := fence + "ts ../../etc/passwd.ts\nx\n" + fence + "\n" + fence + "ts /abs/app.ts\ny\n" + fence

	artifacts := New().Extract(text, tsOpts())
	require.Len(t, artifacts, 2)
	assert.Equal(t, "generated_file_1.ts", artifacts[0].Path)
	assert.Equal(t, "abs/app.ts", artifacts[1].Path)
}

func TestExtract_TildeFencesAndCRLF(t *testing.T) {
	text := "~~~python main.py\r\nprint()\r\n~~~\r\n"

	artifacts := New().Extract(text, tsOpts())
	require.Len(t, artifacts, 1)
	assert.Equal(t, "main.py", artifacts[0].Path)
	assert.Equal(t, "print()", artifacts[0].Content)
}

func TestExtract_NFilesYieldNArtifacts(t *testing.T) {
	paths := []string{"src/a.ts", "src/b.ts", "tests/a.test.ts", "docs/guide.md", "tsconfig.json"}
	var sb strings.Builder
	for i, p := range paths {
		sb.WriteString(fence + " " + p + "\n")
		sb.WriteString("// content " + p + "\n")
		sb.WriteString(fence + "\n")
		if i%2 == 0 {
			sb.WriteString("\nSome commentary.\n\n")
		}
	}

	artifacts := New().Extract(sb.String(), tsOpts())
	require.Len(t, artifacts, len(paths))
	for i, p := range paths {
		assert.Equal(t, p, artifacts[i].Path)
	}
	assert.Equal(t, pkg.KindTest, artifacts[2].Kind)
	assert.Equal(t, pkg.KindDocumentation, artifacts[3].Kind)
	assert.Equal(t, pkg.KindConfig, artifacts[4].Kind)
}

func TestExtract_Deterministic(t *testing.T) {
	text := "```ts src/a.ts\nconst a = 1;\n```\n**File: b.md**\n# B\n```\nunnamed\n```"
	first := New().Extract(text, tsOpts())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, New().Extract(text, tsOpts()))
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]pkg.ArtifactKind{
		"src/app.ts":                pkg.KindSource,
		"src/app.test.ts":           pkg.KindTest,
		"src/app.spec.js":           pkg.KindTest,
		"__tests__/app.js":          pkg.KindTest,
		"tests/helpers.py":          pkg.KindTest,
		"test_service.py":           pkg.KindTest,
		"handler_test.go":           pkg.KindTest,
		"src/LoginServiceTest.java": pkg.KindTest,
		"README.md":                 pkg.KindDocumentation,
		"docs/notes.txt":            pkg.KindDocumentation,
		"requirements.txt":          pkg.KindDependency,
		"package.json":              pkg.KindDependency,
		"go.mod":                    pkg.KindDependency,
		"tsconfig.json":             pkg.KindConfig,
		"config/database.ts":        pkg.KindConfig,
		"settings.py":               pkg.KindConfig,
		".env.example":              pkg.KindConfig,
		"app.yaml":                  pkg.KindConfig,
		"Dockerfile":                pkg.KindSource,
	}
	for p, want := range cases {
		assert.Equal(t, want, Classify(p), p)
	}
}

func TestLanguage(t *testing.T) {
	assert.Equal(t, "typescript", Language("a.tsx", "python"))
	assert.Equal(t, "dockerfile", Language("Dockerfile", "python"))
	assert.Equal(t, "python", Language("Procfile", "python"))
	assert.Equal(t, "csharp", Language("noext", "c#"))
	assert.Equal(t, ".rb", DefaultExtension("ruby"))
	assert.Equal(t, ".txt", DefaultExtension("cobol"))
}

func TestParsePathMarker(t *testing.T) {
	accept := map[string]string{
		"// filepath: src/a.ts":          "src/a.ts",
		"# File: app/main.py":            "app/main.py",
		"<!-- path: docs/index.html -->": "docs/index.html",
		"**src/app.tsx**":                "src/app.tsx",
		"### `src/App.vue`":              "src/App.vue",
		"File: weird/name.custom":        "weird/name.custom",
		"/* file: styles/main.css */":    "styles/main.css",
		"-- filename: db/schema.sql":     "db/schema.sql",
		"**App.js**":                     "App.js",
		"File: next.js":                  "next.js",
	}
	for line, want := range accept {
		got, ok := parsePathMarker(line)
		assert.True(t, ok, line)
		assert.Equal(t, want, got, line)
	}

	reject := []string{
		"", "# Setup", "#!/usr/bin/env python", "Here is main.go", "v1.2", "e.g.",
		"print(\"hi\")", "https://example.com/a.js", "---", "File: two words.txt",
		"**Next.js**", "### Node.js", "Vue.js", "### `Express.js`",
	}
	for _, line := range reject {
		_, ok := parsePathMarker(line)
		assert.False(t, ok, line)
	}
}

func TestParseInfo(t *testing.T) {
	cases := []struct {
		info, path, lang string
	}{
		{"typescript", "", "typescript"},
		{"ts src/a.ts", "src/a.ts", "ts"},
		{"filename: path/to/file.ext", "path/to/file.ext", ""},
		{"python:main.py", "main.py", "python"},
		{`go title="cmd/main.go"`, "cmd/main.go", "go"},
		{"main.rs", "main.rs", ""},
		{"", "", ""},
	}
	for _, c := range cases {
		p, lang := parseInfo(c.info)
		assert.Equal(t, c.path, p, c.info)
		assert.Equal(t, c.lang, lang, c.info)
	}
}

func FuzzExtract(f *testing.F) {
	seeds := []string{
		"",
		"```",
		"```ts src/a.ts\nconst a = 1;",
		"````markdown README.md\n```bash\nls\n```\n````",
		"// File: a.js\n```\n```\n```",
		"**File: **\n~~~\n~~~~",
		"```filename:\n```",
		"### ../x.py\n```python\nx\n```",
		"\r\n```\r\n\r\n",
	}
	for _, s := range seeds {
		f.Add(s, "typescript")
	}
	f.Fuzz(func(t *testing.T, text, style string) {
		e := New()
		first := e.Extract(text, Options{DefaultStyle: style})
		if len(first) == 0 {
			t.Fatalf("no artifacts for %q", text)
		}
		for _, a := range first {
			if a.Path == "" {
				t.Fatalf("empty path for %q", text)
			}
			if a.LineCount != pkg.CountLines(a.Content) {
				t.Fatalf("line count mismatch for %q", a.Path)
			}
		}
		second := e.Extract(text, Options{DefaultStyle: style})
		assert.Equal(t, first, second)
	})
}
