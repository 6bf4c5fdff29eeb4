// Package cleanup retires finished cases: evidence and output files on disk,
// per-case indices and their index patterns, and the log files the Plaso
// tools leave behind. Every destructive operation has a dry-run form that
// reports what would go without touching anything.
package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/rastipwnerr/investigator/internal/config"
	"github.com/rastipwnerr/investigator/internal/elastic"
	"github.com/rastipwnerr/investigator/internal/kibana"
	"github.com/rastipwnerr/investigator/internal/logging"
)

// ErrConfirmationRequired is returned when a clean-all runs without the
// caller having confirmed it.
var ErrConfirmationRequired = errors.New("clean-all requires confirmation")

const removeRetries = 5

// IndexStore is the slice of the Elasticsearch client cleanup needs.
type IndexStore interface {
	CatIndices(ctx context.Context) ([]elastic.IndexInfo, error)
	DeleteIndex(ctx context.Context, name string) error
}

// PatternStore is the slice of the Kibana client cleanup needs.
type PatternStore interface {
	FindIndexPatterns(ctx context.Context, term string) ([]kibana.IndexPattern, error)
	DeleteIndexPattern(ctx context.Context, id string) error
}

// FileEntry is one file slated for removal.
type FileEntry struct {
	Path string
	Size int64
}

// FileReport lists what a file cleanup covers or removed.
type FileReport struct {
	Files      []FileEntry
	Dirs       []string
	TotalBytes int64
	// Failed maps paths to the error that kept them in place.
	Failed map[string]error
}

// Cleaner removes case material from disk and from the backends.
type Cleaner struct {
	fs      afero.Fs
	cfg     *config.Config
	indices IndexStore
	kb      PatternStore
	logger  *slog.Logger
}

// New builds a Cleaner. indices and kb may be nil for file-only use.
func New(fs afero.Fs, cfg *config.Config, indices IndexStore, kb PatternStore) *Cleaner {
	return &Cleaner{
		fs:      fs,
		cfg:     cfg,
		indices: indices,
		kb:      kb,
		logger:  logging.New("cleanup"),
	}
}

// caseDirs lists the per-case directories across the artifact roots and both
// JSON output roots.
func (c *Cleaner) caseDirs(caseName string) []string {
	var dirs []string
	for _, t := range sortedRoots(c.cfg) {
		dirs = append(dirs, filepath.Join(t, caseName))
	}
	dirs = append(dirs,
		c.cfg.JSONDir("elk", caseName),
		c.cfg.JSONDir("timesketch", caseName),
	)
	return dirs
}

func sortedRoots(cfg *config.Config) []string {
	roots := make([]string, 0, 6)
	for _, dir := range cfg.ArtifactRoots() {
		roots = append(roots, dir)
	}
	sort.Strings(roots)
	return roots
}

// CleanCaseFiles removes a case's evidence and output directories. With
// dryRun the report lists what would go and nothing is touched. Removal is
// best-effort: a file that will not delete is recorded in Failed and the
// rest proceeds.
func (c *Cleaner) CleanCaseFiles(caseName string, dryRun bool) (*FileReport, error) {
	report := &FileReport{Failed: map[string]error{}}

	for _, dir := range c.caseDirs(caseName) {
		exists, err := afero.DirExists(c.fs, dir)
		if err != nil {
			return nil, errors.Wrapf(err, "check %s", dir)
		}
		if !exists {
			continue
		}
		report.Dirs = append(report.Dirs, dir)
		err = afero.Walk(c.fs, dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			report.Files = append(report.Files, FileEntry{Path: path, Size: info.Size()})
			report.TotalBytes += info.Size()
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "walk %s", dir)
		}
	}

	if dryRun {
		return report, nil
	}

	for _, dir := range report.Dirs {
		if err := c.removeTree(dir); err != nil {
			report.Failed[dir] = err
			c.logger.Warn("could not remove case directory", "dir", dir, "error", err)
		}
	}
	return report, nil
}

// removeTree deletes a directory tree with bounded retries. Antivirus and
// indexing services briefly hold handles on freshly written files.
func (c *Cleaner) removeTree(dir string) error {
	var lastErr error
	for attempt := 0; attempt < removeRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(200 * time.Millisecond)
		}
		lastErr = c.fs.RemoveAll(dir)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// CleanCaseIndices removes the indices matching a base name (the exact name
// or the deterministic <base>_<type> family) and their index patterns.
// dryRun only reports the matches.
func (c *Cleaner) CleanCaseIndices(ctx context.Context, base string, dryRun bool) ([]string, error) {
	if c.indices == nil {
		return nil, errors.New("no index backend configured")
	}
	exact := elastic.SanitizeIndexName(base)
	prefix := exact + "_"

	infos, err := c.indices.CatIndices(ctx)
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, info := range infos {
		if info.Name == exact || strings.HasPrefix(info.Name, prefix) {
			matched = append(matched, info.Name)
		}
	}
	sort.Strings(matched)

	if dryRun {
		return matched, nil
	}
	for _, name := range matched {
		if err := c.indices.DeleteIndex(ctx, name); err != nil {
			return matched, errors.Wrapf(err, "delete index %s", name)
		}
		c.logger.Info("deleted index", "index", name)
	}
	c.deletePatterns(ctx, matched)
	return matched, nil
}

// CleanAllIndices removes every non-system index. The caller must have
// confirmed the operation; without confirmation the matched names come back
// with ErrConfirmationRequired so the caller can prompt. Indices starting
// with a dot are never touched.
func (c *Cleaner) CleanAllIndices(ctx context.Context, confirmed bool) ([]string, error) {
	if c.indices == nil {
		return nil, errors.New("no index backend configured")
	}
	infos, err := c.indices.CatIndices(ctx)
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, info := range infos {
		if strings.HasPrefix(info.Name, ".") {
			continue
		}
		matched = append(matched, info.Name)
	}
	sort.Strings(matched)

	if !confirmed {
		return matched, ErrConfirmationRequired
	}
	for _, name := range matched {
		if err := c.indices.DeleteIndex(ctx, name); err != nil {
			return matched, errors.Wrapf(err, "delete index %s", name)
		}
		c.logger.Info("deleted index", "index", name)
	}
	c.deletePatterns(ctx, matched)
	return matched, nil
}

// deletePatterns drops the index patterns covering the removed indices,
// wildcard titles like "case1_*" included. Pattern cleanup is cosmetic,
// failures are logged and swallowed.
func (c *Cleaner) deletePatterns(ctx context.Context, indexNames []string) {
	if c.kb == nil || len(indexNames) == 0 {
		return
	}
	patterns, err := c.kb.FindIndexPatterns(ctx, "")
	if err != nil {
		c.logger.Warn("list index patterns", "error", err)
		return
	}
	for _, p := range patterns {
		if !patternCovers(p.Title, indexNames) {
			continue
		}
		if err := c.kb.DeleteIndexPattern(ctx, p.ID); err != nil {
			c.logger.Warn("delete index pattern", "id", p.ID, "error", err)
		}
	}
}

// patternCovers reports whether a pattern title names or wildcard-matches
// any of the given indices.
func patternCovers(title string, indexNames []string) bool {
	stem, wildcard := strings.CutSuffix(title, "*")
	for _, name := range indexNames {
		if title == name {
			return true
		}
		if wildcard && strings.HasPrefix(name, stem) {
			return true
		}
	}
	return false
}

// CleanParserLogs removes the log files the Plaso tools scatter in the base
// directory.
func (c *Cleaner) CleanParserLogs(dryRun bool) (*FileReport, error) {
	report := &FileReport{Failed: map[string]error{}}

	patterns := []string{"log2timeline-*.log.gz", "psort-*.log.gz", "*.plaso.log"}
	for _, pattern := range patterns {
		matches, err := afero.Glob(c.fs, filepath.Join(c.cfg.BaseDir, pattern))
		if err != nil {
			return nil, errors.Wrapf(err, "glob %s", pattern)
		}
		for _, m := range matches {
			info, err := c.fs.Stat(m)
			if err != nil {
				continue
			}
			report.Files = append(report.Files, FileEntry{Path: m, Size: info.Size()})
			report.TotalBytes += info.Size()
		}
	}
	sort.Slice(report.Files, func(i, j int) bool { return report.Files[i].Path < report.Files[j].Path })

	if dryRun {
		return report, nil
	}
	for _, f := range report.Files {
		if err := c.fs.Remove(f.Path); err != nil {
			report.Failed[f.Path] = err
		}
	}
	return report, nil
}
