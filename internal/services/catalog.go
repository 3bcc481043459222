package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"jira_code_agent/pkg"
	"jira_code_agent/src/jira"
)

var catalogExtensions = []string{".yaml", ".yml", ".json"}

// TicketCatalog serves tickets from local files named <KEY>.yaml, <KEY>.yml or <KEY>.json
type TicketCatalog struct {
	dir      string
	analyzer jira.Analyzer
}

// NewTicketCatalog creates a catalog over dir
func NewTicketCatalog(dir string, analyzer jira.Analyzer) *TicketCatalog {
	return &TicketCatalog{dir: dir, analyzer: analyzer}
}

// Fetch loads one ticket by key
func (tc *TicketCatalog) Fetch(ctx context.Context, key string) (*pkg.ItemData, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return nil, fmt.Errorf("invalid ticket key %q: %w", key, pkg.ErrItemNotFound)
	}

	for _, ext := range catalogExtensions {
		path := filepath.Join(tc.dir, key+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read ticket %s: %w", path, err)
		}

		item, err := decodeTicket(data, ext)
		if err != nil {
			return nil, fmt.Errorf("parse ticket %s: %w", path, err)
		}
		if item.Key == "" {
			item.Key = key
		}
		return item, nil
	}

	return nil, fmt.Errorf("ticket %s not in catalog %s: %w", key, tc.dir, pkg.ErrItemNotFound)
}

// Analyze delegates to the analyzer
func (tc *TicketCatalog) Analyze(ctx context.Context, item *pkg.ItemData) (*pkg.Analysis, error) {
	return tc.analyzer.Analyze(ctx, item)
}

// SearchTickets returns catalog tickets whose key, summary or description contain query, sorted by key
func (tc *TicketCatalog) SearchTickets(ctx context.Context, query string) ([]pkg.ItemData, error) {
	entries, err := os.ReadDir(tc.dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", tc.dir, err)
	}

	queryLower := strings.ToLower(query)
	seen := map[string]bool{}
	var results []pkg.ItemData

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		key := strings.TrimSuffix(entry.Name(), ext)
		if entry.IsDir() || !isCatalogExt(ext) || seen[key] {
			continue
		}

		item, err := tc.Fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		seen[key] = true

		if query == "" ||
			strings.Contains(strings.ToLower(item.Key), queryLower) ||
			strings.Contains(strings.ToLower(item.Summary), queryLower) ||
			strings.Contains(strings.ToLower(item.Description), queryLower) {
			results = append(results, *item)
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}

func decodeTicket(data []byte, ext string) (*pkg.ItemData, error) {
	var item pkg.ItemData
	var err error
	if ext == ".json" {
		err = sonic.Unmarshal(data, &item)
	} else {
		err = yaml.Unmarshal(data, &item)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func isCatalogExt(ext string) bool {
	for _, e := range catalogExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
