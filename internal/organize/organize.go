// Package organize lays evidence files out in the deterministic
// <artifact-type>/<case-name>/ directory scheme and answers which cases
// exist on disk.
package organize

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/rastipwnerr/investigator/internal/artifact"
	"github.com/rastipwnerr/investigator/internal/logging"
)

// ErrSourceNotFound reports a missing source directory. It is fatal to the
// organize invocation; nothing is transferred.
var ErrSourceNotFound = errors.New("source directory not found")

// Transfer describes one organized file.
type Transfer struct {
	Source string
	Dest   string
	Type   artifact.Type
}

// Report summarizes one Organize call.
type Report struct {
	Transfers []Transfer
	// Failed maps a source path to the error that prevented its transfer.
	// Per-file failures do not abort the rest of the walk.
	Failed map[string]error
}

// CountByType returns the number of transferred files per artifact type.
func (r *Report) CountByType() map[artifact.Type]int {
	counts := make(map[artifact.Type]int)
	for _, tr := range r.Transfers {
		counts[tr.Type]++
	}
	return counts
}

// CaseInfo describes one discovered case.
type CaseInfo struct {
	Name string
	// Files holds per-type file counts for the case directories that exist.
	Files map[artifact.Type]int
}

// Organizer transfers evidence files into per-case type directories.
type Organizer struct {
	fs     afero.Fs
	roots  map[artifact.Type]string
	logger *slog.Logger
}

// New creates an Organizer over the given filesystem and type roots.
func New(fs afero.Fs, roots map[artifact.Type]string) *Organizer {
	return &Organizer{fs: fs, roots: roots, logger: logging.New("organize")}
}

// Organize walks sourceDir recursively, classifies every regular file, and
// copies (or moves) it to <type-root>/<caseName>/<basename>. Hidden and
// editor-temp files are skipped. On move, the source is removed only after
// the destination write has been confirmed, so an interrupted transfer
// leaves the file present in at least one of the two locations.
func (o *Organizer) Organize(sourceDir, caseName string, move bool) (*Report, error) {
	if ok, err := afero.DirExists(o.fs, sourceDir); err != nil {
		return nil, errors.Wrap(err, "stat source dir")
	} else if !ok {
		return nil, errors.Wrapf(ErrSourceNotFound, "%s", sourceDir)
	}

	report := &Report{Failed: make(map[string]error)}

	err := afero.Walk(o.fs, sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			report.Failed[path] = err
			return nil
		}
		if info.IsDir() {
			return nil
		}
		name := info.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") {
			return nil
		}

		typ := artifact.Classify(name)
		destDir := filepath.Join(o.roots[typ], caseName)
		if err := o.fs.MkdirAll(destDir, 0o755); err != nil {
			report.Failed[path] = errors.Wrap(err, "create case dir")
			return nil
		}
		dest, err := o.uniqueDest(destDir, name)
		if err != nil {
			report.Failed[path] = err
			return nil
		}

		if err := o.transfer(path, dest, move); err != nil {
			report.Failed[path] = err
			return nil
		}
		o.logger.Debug("organized", "file", name, "type", typ.String(), "dest", dest)
		report.Transfers = append(report.Transfers, Transfer{Source: path, Dest: dest, Type: typ})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walk source dir")
	}
	return report, nil
}

// uniqueDest resolves basename collisions with a _1, _2, ... suffix.
func (o *Organizer) uniqueDest(dir, name string) (string, error) {
	dest := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		exists, err := afero.Exists(o.fs, dest)
		if err != nil {
			return "", errors.Wrap(err, "check destination")
		}
		if !exists {
			return dest, nil
		}
		dest = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
	}
}

// transfer copies src to dest, preserving the modification time, and removes
// src only when move is requested and the copy fully succeeded.
func (o *Organizer) transfer(src, dest string, move bool) error {
	in, err := o.fs.Open(src)
	if err != nil {
		return errors.Wrap(err, "open source")
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.Wrap(err, "stat source")
	}

	out, err := o.fs.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "create destination")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = o.fs.Remove(dest)
		return errors.Wrap(err, "copy")
	}
	if err := out.Close(); err != nil {
		_ = o.fs.Remove(dest)
		return errors.Wrap(err, "close destination")
	}
	_ = o.fs.Chtimes(dest, info.ModTime(), info.ModTime())

	if move {
		if err := o.fs.Remove(src); err != nil {
			// The copy is complete; losing the delete leaves a duplicate,
			// never a lost file.
			return errors.Wrap(err, "remove source after move")
		}
	}
	return nil
}

// ListCases scans every type root and returns the union of case
// subdirectories, sorted by name, with per-type file counts.
func (o *Organizer) ListCases() ([]CaseInfo, error) {
	byName := make(map[string]*CaseInfo)

	for typ, root := range o.roots {
		entries, err := afero.ReadDir(o.fs, root)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read root %s", root)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			ci, ok := byName[e.Name()]
			if !ok {
				ci = &CaseInfo{Name: e.Name(), Files: make(map[artifact.Type]int)}
				byName[e.Name()] = ci
			}
			n, err := o.countFiles(filepath.Join(root, e.Name()))
			if err != nil {
				return nil, err
			}
			if n > 0 {
				ci.Files[typ] = n
			}
		}
	}

	cases := make([]CaseInfo, 0, len(byName))
	for _, ci := range byName {
		cases = append(cases, *ci)
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].Name < cases[j].Name })
	return cases, nil
}

func (o *Organizer) countFiles(dir string) (int, error) {
	entries, err := afero.ReadDir(o.fs, dir)
	if err != nil {
		return 0, errors.Wrapf(err, "read case dir %s", dir)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n, nil
}

// CasePaths returns the per-type input directories for a case.
func (o *Organizer) CasePaths(caseName string) map[artifact.Type]string {
	paths := make(map[artifact.Type]string, len(o.roots))
	for typ, root := range o.roots {
		paths[typ] = filepath.Join(root, caseName)
	}
	return paths
}
