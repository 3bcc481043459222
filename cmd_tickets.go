package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jira_code_agent/internal/services"
)

var ticketsDir string

var ticketsCmd = &cobra.Command{
	Use:   "tickets [query]",
	Short: "List tickets in the local catalog",
	Long: `List tickets stored as <KEY>.yaml or <KEY>.json in ITEMS_CATALOG_DIR,
optionally filtered by a case-insensitive query over key, summary and description.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTickets,
}

func init() {
	ticketsCmd.Flags().StringVar(&ticketsDir, "dir", "", "Catalog directory (default ITEMS_CATALOG_DIR)")
}

func runTickets(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	dir := cfg.ItemsConfig.CatalogDir
	if ticketsDir != "" {
		dir = ticketsDir
	}
	query := ""
	if len(args) == 1 {
		query = args[0]
	}

	// listing never analyzes, so the catalog needs no analyzer
	catalog := services.NewTicketCatalog(dir, nil)
	tickets, err := catalog.SearchTickets(cmd.Context(), query)
	if err != nil {
		return err
	}

	if len(tickets) == 0 {
		fmt.Println(mutedStyle.Render("No tickets found in " + dir))
		return nil
	}
	for _, t := range tickets {
		meta := strings.Join(nonEmpty(t.IssueType, t.Priority, t.Status), ", ")
		fmt.Printf("%s  %s  %s\n", accentStyle.Render(t.Key), t.Summary, mutedStyle.Render(meta))
	}
	fmt.Println(mutedStyle.Render(fmt.Sprintf("%d tickets", len(tickets))))
	return nil
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
