package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"jira_code_agent/internal/storage"
	"jira_code_agent/pkg"
	"jira_code_agent/src/logger"
)

const maxOutputBytes = 8 * 1024

// DefaultTestCommands maps a test framework to its argv. {file} is the test file and
// {dir} its directory, both relative to the workspace root.
func DefaultTestCommands() map[string][]string {
	return map[string][]string{
		"jest":   {"npx", "--yes", "jest", "--ci", "{file}"},
		"vitest": {"npx", "--yes", "vitest", "run", "{file}"},
		"pytest": {"python3", "-m", "pytest", "-q", "{file}"},
		"go":     {"go", "test", "-v", "./{dir}"},
	}
}

// SandboxTestRunner writes artifacts into a throwaway workspace and runs each test file
type SandboxTestRunner struct {
	writer   storage.ArtifactWriter
	commands map[string][]string
	timeout  time.Duration
}

// NewSandboxTestRunner creates a runner; nil commands use DefaultTestCommands
func NewSandboxTestRunner(writer storage.ArtifactWriter, commands map[string][]string, timeout time.Duration) *SandboxTestRunner {
	if len(commands) == 0 {
		commands = DefaultTestCommands()
	}
	return &SandboxTestRunner{writer: writer, commands: commands, timeout: timeout}
}

// Run executes every test artifact. A failing or missing toolchain is reported per
// result; only workspace setup problems are returned as errors.
func (r *SandboxTestRunner) Run(ctx context.Context, artifacts []pkg.Artifact, opts pkg.GenerationOptions) ([]pkg.TestResult, error) {
	framework := frameworkFor(opts)
	argv, ok := r.commands[framework]
	if !ok || len(argv) == 0 {
		return nil, fmt.Errorf("no test command configured for framework %q", framework)
	}

	workspace, err := os.MkdirTemp("", "jira-code-agent-tests-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create test workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	if err := r.writer.WriteFiles(workspace, artifacts); err != nil {
		return nil, err
	}

	var results []pkg.TestResult
	for _, a := range artifacts {
		if a.Kind != pkg.KindTest {
			continue
		}
		results = append(results, r.runOne(ctx, workspace, framework, argv, a.Path))
	}
	return results, nil
}

func (r *SandboxTestRunner) runOne(ctx context.Context, workspace, framework string, argv []string, testFile string) pkg.TestResult {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := expandArgs(argv, testFile)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = workspace

	started := time.Now()
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(started)

	result := pkg.TestResult{
		TestFile:   testFile,
		DurationMs: elapsed.Milliseconds(),
		Output:     truncate(string(output), maxOutputBytes),
	}
	result.TotalTests, result.PassedTests, result.FailedTests = ParseSummary(framework, string(output))

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.Errors = append(result.Errors, fmt.Sprintf("test run timed out after %s", r.timeout))
	case err != nil:
		result.Errors = append(result.Errors, err.Error())
	}
	result.Passed = err == nil && result.FailedTests == 0

	logger.Info().
		Str("test_file", testFile).
		Str("framework", framework).
		Bool("passed", result.Passed).
		Int("total", result.TotalTests).
		Int64("duration_ms", result.DurationMs).
		Msg("Test file executed")

	return result
}

func frameworkFor(opts pkg.GenerationOptions) string {
	if fw := strings.ToLower(strings.TrimSpace(opts.TestFramework)); fw != "" {
		return fw
	}
	switch strings.ToLower(opts.CodeStyle) {
	case "python":
		return "pytest"
	case "go", "golang":
		return "go"
	default:
		return "jest"
	}
}

func expandArgs(argv []string, testFile string) []string {
	dir := path.Dir(testFile)
	out := make([]string, len(argv))
	for i, arg := range argv {
		arg = strings.ReplaceAll(arg, "{file}", testFile)
		out[i] = strings.ReplaceAll(arg, "{dir}", dir)
	}
	return out
}

var (
	jestSummary   = regexp.MustCompile(`Tests:\s+(?:(\d+) failed, )?(?:(\d+) skipped, )?(?:(\d+) todo, )?(?:(\d+) passed, )?(\d+) total`)
	pytestPassed  = regexp.MustCompile(`(\d+) passed`)
	pytestFailed  = regexp.MustCompile(`(\d+) (?:failed|error)`)
	goTestPass    = regexp.MustCompile(`(?m)^\s*--- PASS: `)
	goTestFailure = regexp.MustCompile(`(?m)^\s*--- FAIL: `)
)

// ParseSummary extracts total, passed and failed counts from a runner's output
func ParseSummary(framework, output string) (total, passed, failed int) {
	switch framework {
	case "jest", "vitest":
		m := jestSummary.FindStringSubmatch(output)
		if m == nil {
			return 0, 0, 0
		}
		failed, passed, total = atoi(m[1]), atoi(m[4]), atoi(m[5])
		return total, passed, failed
	case "pytest":
		for _, m := range pytestPassed.FindAllStringSubmatch(output, -1) {
			passed += atoi(m[1])
		}
		for _, m := range pytestFailed.FindAllStringSubmatch(output, -1) {
			failed += atoi(m[1])
		}
		return passed + failed, passed, failed
	case "go":
		passed = len(goTestPass.FindAllString(output, -1))
		failed = len(goTestFailure.FindAllString(output, -1))
		return passed + failed, passed, failed
	}
	return 0, 0, 0
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// truncate keeps the last limit bytes, starting on a rune boundary
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := len(s) - limit
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}
