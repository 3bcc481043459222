package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Global flags
var (
	envFile    string
	configFile string
)

// Styles for output
var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	})
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	})
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	})
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	})
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	})
	boldStyle = lipgloss.NewStyle().Bold(true)
	fileStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#6c7680")).
			Padding(0, 1)
)

var rootCmd = &cobra.Command{
	Use:   "jira-code-agent",
	Short: "Generate code from Jira tickets with a human review loop",
	Long: `jira-code-agent turns a Jira ticket into generated source and test files,
then iterates on them with reviewer feedback until they are approved or the
iteration limit is reached.

Examples:
  jira-code-agent serve                          # Run the HTTP API
  jira-code-agent generate ABC-123               # Review loop in the terminal
  jira-code-agent generate ABC-123 --approve     # Generate and export without review
  jira-code-agent tickets login                  # Search the local ticket catalog`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to the .env file")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config.yaml (overrides CONFIG_FILE)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(ticketsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
