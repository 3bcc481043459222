package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"jira_code_agent/internal/core"
	"jira_code_agent/internal/storage"
	"jira_code_agent/pkg"
)

var (
	genMaxIterations int
	genOut           string
	genApprove       bool
	genShowCode      bool
	genRunTests      bool
	genCodeStyle     string
	genFramework     string
	genNoTests       bool
	genRefresh       bool
	genNoDocs        bool
)

var errReviewAborted = errors.New("review aborted")

var generateCmd = &cobra.Command{
	Use:   "generate <ticket-key>",
	Short: "Generate code for a ticket and review it in the terminal",
	Long: `Generate code for a ticket, then review each iteration interactively.

Approving exports the files and a manifest.json to <out>/<ticket-key>/.
Rejecting asks for feedback and regenerates until the iteration limit.

Examples:
  jira-code-agent generate ABC-123
  jira-code-agent generate ABC-123 --code-style python --framework fastapi
  jira-code-agent generate ABC-123 --approve --out ./build`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().IntVar(&genMaxIterations, "max-iterations", 0, "Maximum review iterations (default WORKFLOW_MAX_ITERATIONS)")
	generateCmd.Flags().StringVar(&genOut, "out", "", "Export directory (default EXPORT_DIR)")
	generateCmd.Flags().BoolVar(&genApprove, "approve", false, "Approve the first iteration without review")
	generateCmd.Flags().BoolVar(&genShowCode, "show-code", true, "Print generated file contents")
	generateCmd.Flags().BoolVar(&genRunTests, "run-tests", false, "Run generated tests before each review")
	generateCmd.Flags().StringVar(&genCodeStyle, "code-style", "", "Language to generate (overrides config.yaml)")
	generateCmd.Flags().StringVar(&genFramework, "framework", "", "Framework to target (overrides config.yaml)")
	generateCmd.Flags().BoolVar(&genNoTests, "no-tests", false, "Skip test generation")
	generateCmd.Flags().BoolVar(&genNoDocs, "no-docs", false, "Skip documentation generation")
	generateCmd.Flags().BoolVar(&genRefresh, "refresh", false, "Refetch the ticket instead of using the cache")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if genOut != "" {
		a.writer = storage.NewFileArtifactWriter(genOut)
	}

	opts := a.defaults
	if genCodeStyle != "" {
		opts.CodeStyle = genCodeStyle
	}
	if genFramework != "" {
		opts.Framework = genFramework
	}
	if genNoTests {
		opts.GenerateTests = false
	}
	if genNoDocs {
		opts.IncludeDocumentation = false
	}

	maxIterations := genMaxIterations
	if maxIterations == 0 {
		maxIterations = a.engine.Config().Workflow.DefaultMaxIterations
	}

	key := strings.ToUpper(strings.TrimSpace(args[0]))
	if genRefresh && a.cache != nil {
		if err := a.cache.Invalidate(ctx, key); err != nil {
			fmt.Println(warnStyle.Render("Cache not cleared: " + err.Error()))
		}
	}
	fmt.Println(mutedStyle.Render(fmt.Sprintf("Fetching and analyzing %s...", key)))

	resp, err := a.engine.Start(ctx, core.StartRequest{
		ItemKey:       key,
		Options:       opts,
		MaxIterations: maxIterations,
	})
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		printResponse(resp)
		if !resp.Success {
			return errors.New(resp.Message)
		}
		if !resp.ApprovalRequired {
			break
		}

		if genRunTests {
			runTests(cmd, a, resp.SessionID)
		}

		fb := pkg.Feedback{Decision: pkg.DecisionApproved, Text: "Approved from the command line"}
		if !genApprove {
			fb, err = promptFeedback(reader, os.Stdout)
			if err != nil {
				return err
			}
		}

		fmt.Println(mutedStyle.Render("Submitting review..."))
		resp, err = a.engine.SubmitApproval(ctx, resp.SessionID, fb)
		if err != nil {
			return err
		}
	}

	return exportSession(cmd, a, resp.SessionID)
}

func runTests(cmd *cobra.Command, a *app, sessionID string) {
	results, err := a.engine.RunTests(cmd.Context(), sessionID)
	if err != nil {
		fmt.Println(warnStyle.Render("Tests not run: " + err.Error()))
		return
	}
	for _, r := range results {
		line := fmt.Sprintf("%s  %d/%d passed (%dms)", r.TestFile, r.PassedTests, r.TotalTests, r.DurationMs)
		if r.Passed {
			fmt.Println(passStyle.Render("PASS " + line))
			continue
		}
		fmt.Println(failStyle.Render("FAIL " + line))
		for _, e := range r.Errors {
			fmt.Println(mutedStyle.Render("  " + e))
		}
	}
}

func exportSession(cmd *cobra.Command, a *app, sessionID string) error {
	session, err := a.engine.Session(cmd.Context(), sessionID)
	if err != nil {
		return err
	}

	if previous, err := a.writer.LoadManifest(session.ItemKey); err == nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("Replacing export from %s", previous.ExportedAt.Format("2006-01-02 15:04"))))
	}

	manifest, err := a.writer.Export(session)
	if err != nil {
		return err
	}

	dir := a.cfg.ExportConfig.Dir
	if genOut != "" {
		dir = genOut
	}
	fmt.Println(passStyle.Render(fmt.Sprintf("Exported %d files (%d lines) to %s",
		manifest.Stats.TotalFiles, manifest.Stats.TotalLines, filepath.Join(dir, session.ItemKey))))
	return nil
}

func printResponse(resp *pkg.WorkflowResponse) {
	fmt.Println()
	fmt.Println(boldStyle.Render(fmt.Sprintf("Session %s", resp.SessionID)) + "  " +
		accentStyle.Render(string(resp.State)) + "  " +
		mutedStyle.Render(fmt.Sprintf("iteration %d/%d, %d tokens", resp.IterationCount, resp.MaxIterations, resp.TokensUsed)))

	if resp.Analysis != nil && resp.IterationCount == 1 && resp.ApprovalRequired {
		fmt.Println(mutedStyle.Render(fmt.Sprintf("Complexity %d/10, %d requirements",
			resp.Analysis.ComplexityScore, len(resp.Analysis.Requirements))))
	}

	for _, art := range resp.Artifacts {
		header := fmt.Sprintf("%s  %s, %s, %d lines", art.Path, art.Kind, art.Language, art.LineCount)
		if genShowCode {
			fmt.Println(fileStyle.Render(accentStyle.Render(header) + "\n\n" + strings.TrimRight(art.Content, "\n")))
		} else {
			fmt.Println("  " + header)
		}
	}

	// failed responses repeat the message as their last warning
	if resp.Success {
		for _, w := range resp.Warnings {
			fmt.Println(warnStyle.Render(w))
		}
	}

	switch {
	case !resp.Success:
		fmt.Println(failStyle.Render(resp.Message))
	case resp.State == pkg.StateCompleted:
		fmt.Println(passStyle.Render(resp.Message))
	default:
		fmt.Println(resp.Message)
	}
}

// promptFeedback reads a decision and, on rejection, the reviewer's notes
func promptFeedback(r *bufio.Reader, w io.Writer) (pkg.Feedback, error) {
	for {
		fmt.Fprint(w, boldStyle.Render("Approve? [y]es / [n]o / [q]uit: "))
		answer, err := readLine(r)
		if err != nil {
			return pkg.Feedback{}, err
		}

		switch strings.ToLower(answer) {
		case "y", "yes":
			return pkg.Feedback{Decision: pkg.DecisionApproved, Text: "Approved"}, nil
		case "q", "quit":
			return pkg.Feedback{}, errReviewAborted
		case "n", "no":
			fb := pkg.Feedback{Decision: pkg.DecisionRejected}
			fmt.Fprint(w, "What should change? ")
			if fb.Text, err = readLine(r); err != nil {
				return pkg.Feedback{}, err
			}
			fmt.Fprint(w, mutedStyle.Render("Specific issues, comma separated (optional): "))
			issues, err := readLine(r)
			if err != nil {
				return pkg.Feedback{}, err
			}
			fb.SpecificIssues = splitList(issues)
			return fb, nil
		}
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if errors.Is(err, io.EOF) && line == "" {
		return "", errReviewAborted
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
