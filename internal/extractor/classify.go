package extractor

import (
	"path"
	"strings"

	"jira_code_agent/pkg"
)

var extensionLanguages = map[string]string{
	".js":       "javascript",
	".jsx":      "javascript",
	".mjs":      "javascript",
	".cjs":      "javascript",
	".ts":       "typescript",
	".tsx":      "typescript",
	".py":       "python",
	".java":     "java",
	".kt":       "kotlin",
	".scala":    "scala",
	".cs":       "csharp",
	".cpp":      "cpp",
	".cc":       "cpp",
	".hpp":      "cpp",
	".c":        "c",
	".h":        "c",
	".go":       "go",
	".rs":       "rust",
	".php":      "php",
	".rb":       "ruby",
	".swift":    "swift",
	".json":     "json",
	".yaml":     "yaml",
	".yml":      "yaml",
	".toml":     "toml",
	".xml":      "xml",
	".ini":      "ini",
	".md":       "markdown",
	".markdown": "markdown",
	".rst":      "rst",
	".adoc":     "asciidoc",
	".txt":      "text",
	".css":      "css",
	".scss":     "scss",
	".sass":     "sass",
	".less":     "less",
	".html":     "html",
	".htm":      "html",
	".vue":      "vue",
	".svelte":   "svelte",
	".sh":       "shell",
	".bash":     "shell",
	".zsh":      "shell",
	".ps1":      "powershell",
	".sql":      "sql",
	".graphql":  "graphql",
	".gql":      "graphql",
	".proto":    "protobuf",
	".env":      "dotenv",
}

var basenameLanguages = map[string]string{
	"dockerfile":    "dockerfile",
	"makefile":      "makefile",
	"gemfile":       "ruby",
	"rakefile":      "ruby",
	"go.mod":        "go",
	"go.sum":        "go",
	".gitignore":    "gitignore",
	".dockerignore": "gitignore",
	".env":          "dotenv",
}

// languageExtensions maps a language (or code style) to its conventional extension
var languageExtensions = map[string]string{
	"typescript": ".ts",
	"javascript": ".js",
	"python":     ".py",
	"java":       ".java",
	"kotlin":     ".kt",
	"scala":      ".scala",
	"csharp":     ".cs",
	"cpp":        ".cpp",
	"c":          ".c",
	"go":         ".go",
	"rust":       ".rs",
	"php":        ".php",
	"ruby":       ".rb",
	"swift":      ".swift",
	"json":       ".json",
	"yaml":       ".yaml",
	"toml":       ".toml",
	"xml":        ".xml",
	"markdown":   ".md",
	"html":       ".html",
	"css":        ".css",
	"scss":       ".scss",
	"shell":      ".sh",
	"sql":        ".sql",
	"graphql":    ".graphql",
	"text":       ".txt",
}

var languageAliases = map[string]string{
	"ts":        "typescript",
	"tsx":       "typescript",
	"js":        "javascript",
	"jsx":       "javascript",
	"node":      "javascript",
	"py":        "python",
	"python3":   "python",
	"golang":    "go",
	"rs":        "rust",
	"rb":        "ruby",
	"cs":        "csharp",
	"c#":        "csharp",
	"c++":       "cpp",
	"kt":        "kotlin",
	"sh":        "shell",
	"bash":      "shell",
	"zsh":       "shell",
	"console":   "shell",
	"yml":       "yaml",
	"md":        "markdown",
	"plaintext": "text",
	"txt":       "text",
}

var dependencyManifests = map[string]bool{
	"package.json":         true,
	"package-lock.json":    true,
	"yarn.lock":            true,
	"pnpm-lock.yaml":       true,
	"requirements.txt":     true,
	"requirements-dev.txt": true,
	"pyproject.toml":       true,
	"pipfile":              true,
	"pipfile.lock":         true,
	"setup.py":             true,
	"go.mod":               true,
	"go.sum":               true,
	"cargo.toml":           true,
	"cargo.lock":           true,
	"pom.xml":              true,
	"build.gradle":         true,
	"build.gradle.kts":     true,
	"gemfile":              true,
	"gemfile.lock":         true,
	"composer.json":        true,
	"composer.lock":        true,
}

var documentationExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".rst":      true,
	".adoc":     true,
}

var configExtensions = map[string]bool{
	".json":       true,
	".yaml":       true,
	".yml":        true,
	".toml":       true,
	".ini":        true,
	".env":        true,
	".conf":       true,
	".cfg":        true,
	".properties": true,
}

var testDirs = map[string]bool{
	"test":      true,
	"tests":     true,
	"__tests__": true,
	"spec":      true,
	"specs":     true,
	"e2e":       true,
}

// Classify derives the artifact kind from a relative path
func Classify(p string) pkg.ArtifactKind {
	lower := strings.ToLower(p)
	base := path.Base(lower)
	ext := path.Ext(base)

	switch {
	case isTestPath(p):
		return pkg.KindTest
	case dependencyManifests[base]:
		return pkg.KindDependency
	case documentationExtensions[ext]:
		return pkg.KindDocumentation
	case isConfigPath(lower, base, ext):
		return pkg.KindConfig
	default:
		return pkg.KindSource
	}
}

func isTestPath(p string) bool {
	dir, file := path.Split(p)
	for _, seg := range strings.Split(strings.ToLower(dir), "/") {
		if testDirs[seg] {
			return true
		}
	}

	lowerFile := strings.ToLower(file)
	for _, marker := range []string{".test.", ".spec.", "_test.", "_spec."} {
		if strings.Contains(lowerFile, marker) {
			return true
		}
	}
	if strings.HasPrefix(lowerFile, "test_") || lowerFile == "conftest.py" {
		return true
	}

	stem := strings.TrimSuffix(file, path.Ext(file))
	return len(stem) > 4 && (strings.HasSuffix(stem, "Test") || strings.HasSuffix(stem, "Tests"))
}

func isConfigPath(lower, base, ext string) bool {
	if configExtensions[ext] || strings.HasPrefix(base, ".env") {
		return true
	}
	stem := strings.TrimSuffix(base, ext)
	if strings.Contains(stem, "config") || strings.Contains(stem, "settings") {
		return true
	}
	dir := path.Dir(lower)
	for _, seg := range strings.Split(dir, "/") {
		if seg == "config" || seg == "configs" || seg == "settings" {
			return true
		}
	}
	return false
}

// Language derives the language tag from a path, falling back to the default style
func Language(p, defaultStyle string) string {
	base := strings.ToLower(path.Base(p))
	if lang, ok := basenameLanguages[base]; ok {
		return lang
	}
	if lang, ok := extensionLanguages[path.Ext(base)]; ok {
		return lang
	}
	return NormalizeLanguage(defaultStyle)
}

// NormalizeLanguage maps fence tags and style names onto canonical language names
func NormalizeLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return "text"
	}
	if canonical, ok := languageAliases[tag]; ok {
		return canonical
	}
	return tag
}

// DefaultExtension returns the conventional extension for a language or style
func DefaultExtension(style string) string {
	if ext, ok := languageExtensions[NormalizeLanguage(style)]; ok {
		return ext
	}
	return ".txt"
}
