package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bytedance/sonic"

	"jira_code_agent/pkg"
	"jira_code_agent/src/logger"
)

const manifestFile = "manifest.json"

// ArtifactWriter materializes artifacts on disk
type ArtifactWriter interface {
	Export(session *pkg.Session) (*Manifest, error)
	LoadManifest(itemKey string) (*Manifest, error)
	WriteFiles(dir string, artifacts []pkg.Artifact) error
}

// Manifest describes one exported session
type Manifest struct {
	SessionID      string          `json:"session_id"`
	ItemKey        string          `json:"ticket_key"`
	State          string          `json:"state"`
	IterationCount int             `json:"iteration_count"`
	TokensUsed     int             `json:"tokens_used"`
	ExportedAt     time.Time       `json:"exported_at"`
	Files          []ManifestEntry `json:"files"`
	Stats          ExportStats     `json:"stats"`
}

// ManifestEntry is one written file
type ManifestEntry struct {
	Path        string           `json:"path"`
	Kind        pkg.ArtifactKind `json:"kind"`
	Language    string           `json:"language"`
	LineCount   int              `json:"line_count"`
	Description string           `json:"description"`
}

// ExportStats summarizes an artifact set
type ExportStats struct {
	TotalFiles int                      `json:"total_files"`
	TotalLines int                      `json:"total_lines"`
	ByKind     map[pkg.ArtifactKind]int `json:"by_kind"`
	Languages  []string                 `json:"languages"`
}

// FileArtifactWriter writes artifacts below baseDir/<ticket key>/
type FileArtifactWriter struct {
	baseDir string
	now     func() time.Time
}

// NewFileArtifactWriter creates a writer rooted at baseDir
func NewFileArtifactWriter(baseDir string) *FileArtifactWriter {
	return &FileArtifactWriter{baseDir: baseDir, now: time.Now}
}

// Export writes the session's artifacts and a manifest.json next to them
func (w *FileArtifactWriter) Export(session *pkg.Session) (*Manifest, error) {
	dir, err := w.itemDir(session.ItemKey)
	if err != nil {
		return nil, err
	}
	if err := w.WriteFiles(dir, session.Artifacts); err != nil {
		return nil, err
	}

	manifest := &Manifest{
		SessionID:      session.ID,
		ItemKey:        session.ItemKey,
		State:          string(session.State),
		IterationCount: session.IterationCount,
		TokensUsed:     session.TokensUsed,
		ExportedAt:     w.now(),
		Files:          make([]ManifestEntry, 0, len(session.Artifacts)),
		Stats:          Summarize(session.Artifacts),
	}
	for _, a := range session.Artifacts {
		manifest.Files = append(manifest.Files, ManifestEntry{
			Path:        a.Path,
			Kind:        a.Kind,
			Language:    a.Language,
			LineCount:   a.LineCount,
			Description: a.Description,
		})
	}

	data, err := sonic.ConfigStd.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %v", err)
	}
	manifestPath := filepath.Join(dir, manifestFile)
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %v", err)
	}

	logger.Info().
		Str("session_id", session.ID).
		Str("ticket_key", session.ItemKey).
		Str("dir", dir).
		Int("files", len(session.Artifacts)).
		Msg("Exported artifacts")

	return manifest, nil
}

// LoadManifest reads a previous export; a missing export is pkg.ErrNotFound
func (w *FileArtifactWriter) LoadManifest(itemKey string) (*Manifest, error) {
	dir, err := w.itemDir(itemKey)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if os.IsNotExist(err) {
		return nil, pkg.NewError(pkg.KindNotFound, "no export for %s", itemKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %v", err)
	}

	var manifest Manifest
	if err := sonic.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %v", err)
	}
	return &manifest, nil
}

// WriteFiles writes each artifact below dir. Paths must stay inside dir.
func (w *FileArtifactWriter) WriteFiles(dir string, artifacts []pkg.Artifact) error {
	for _, a := range artifacts {
		rel := filepath.FromSlash(a.Path)
		if !filepath.IsLocal(rel) {
			return pkg.NewError(pkg.KindValidation, "artifact path %q escapes the export directory", a.Path)
		}

		target := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %v", a.Path, err)
		}
		if err := os.WriteFile(target, []byte(a.Content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %v", a.Path, err)
		}
	}
	return nil
}

func (w *FileArtifactWriter) itemDir(itemKey string) (string, error) {
	if itemKey == "" || !filepath.IsLocal(itemKey) || filepath.Base(itemKey) != itemKey {
		return "", pkg.NewError(pkg.KindValidation, "invalid ticket key %q for export", itemKey)
	}
	return filepath.Join(w.baseDir, itemKey), nil
}

// Summarize counts files, lines and languages
func Summarize(artifacts []pkg.Artifact) ExportStats {
	stats := ExportStats{
		ByKind:    make(map[pkg.ArtifactKind]int),
		Languages: []string{},
	}
	languages := make(map[string]bool)

	for _, a := range artifacts {
		stats.TotalFiles++
		stats.TotalLines += a.LineCount
		stats.ByKind[a.Kind]++
		if a.Language != "" && !languages[a.Language] {
			languages[a.Language] = true
			stats.Languages = append(stats.Languages, a.Language)
		}
	}
	sort.Strings(stats.Languages)
	return stats
}
