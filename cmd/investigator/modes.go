package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"

	"github.com/rastipwnerr/investigator/internal/artifact"
	"github.com/rastipwnerr/investigator/internal/cleanup"
	"github.com/rastipwnerr/investigator/internal/config"
	"github.com/rastipwnerr/investigator/internal/elastic"
	"github.com/rastipwnerr/investigator/internal/format"
	"github.com/rastipwnerr/investigator/internal/ingest"
	"github.com/rastipwnerr/investigator/internal/kibana"
	"github.com/rastipwnerr/investigator/internal/logging"
	"github.com/rastipwnerr/investigator/internal/mapper"
	"github.com/rastipwnerr/investigator/internal/organize"
	"github.com/rastipwnerr/investigator/internal/runlog"
	"github.com/rastipwnerr/investigator/internal/timesketch"
)

// app bundles what every mode needs.
type app struct {
	cfg *config.Config
	out io.Writer
	in  io.Reader
}

func (a *app) runOrganize() error {
	org := organize.New(afero.NewOsFs(), a.cfg.ArtifactRoots())
	report, err := org.Organize(flags.sourceDir, flags.caseName, flags.move)
	if err != nil {
		return err
	}

	verb := "copied"
	if flags.move {
		verb = "moved"
	}
	counts := report.CountByType()
	tb := format.NewTable()
	tb.Header("Type", "Files")
	tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
	total := 0
	for _, t := range artifact.All() {
		if counts[t] == 0 {
			continue
		}
		tb.Row(t.String(), counts[t])
		total += counts[t]
	}
	tb.Footer("TOTAL", total)
	fmt.Fprintln(a.out, tb.String())
	fmt.Fprintf(a.out, "%s %d files into case %q\n", verb, total, flags.caseName)

	if len(report.Failed) > 0 {
		for path, ferr := range report.Failed {
			fmt.Fprintf(a.out, "failed: %s: %v\n", path, ferr)
		}
		return fmt.Errorf("%d files could not be transferred", len(report.Failed))
	}
	return nil
}

func (a *app) runIngest(ctx context.Context) error {
	var (
		indexer  ingest.Indexer
		patterns ingest.PatternCreator
		timeline ingest.TimelineImporter
	)
	platform := mapper.Platform(flags.platform)

	switch platform {
	case mapper.ELK:
		es, err := elastic.New(a.cfg.Elastic.Host, elastic.WithLogger(logging.New("elastic")))
		if err != nil {
			return err
		}
		if err := es.Ping(ctx); err != nil {
			return fmt.Errorf("index backend unreachable: %w", err)
		}
		kb, err := kibana.New(a.cfg.Elastic.KibanaHost, kibana.WithLogger(logging.New("kibana")))
		if err != nil {
			return err
		}
		indexer, patterns = es, kb
	case mapper.Timesketch:
		ts, err := timesketch.New(a.cfg.Timesketch.Host, a.cfg.Timesketch.Username,
			a.cfg.Timesketch.Password, timesketch.WithLogger(logging.New("timesketch")))
		if err != nil {
			return err
		}
		if err := ts.Login(ctx); err != nil {
			return err
		}
		timeline = ts
	}

	manifest, err := runlog.Open(a.cfg.RunLogPath)
	if err != nil {
		return err
	}
	defer manifest.Close()

	p := ingest.New(a.cfg, indexer, patterns, timeline, manifest)
	started := time.Now()
	results, err := p.Run(ctx, flags.caseName, ingest.Options{
		Platform:   platform,
		Types:      selectedTypes(&flags),
		SketchName: flags.sketchName,
		IndexName:  flags.indexName,
		Parallel:   flags.parallel,
	})
	if results != nil {
		a.printResults(results)
		fmt.Fprintf(a.out, "completed in %s\n", format.FmtDuration(time.Since(started)))
	}
	return err
}

func (a *app) printResults(results []ingest.TypeResult) {
	tb := format.NewTable()
	tb.Header("Type", "Status", "Docs", "Skipped", "Index")
	tb.Columns(
		format.ColumnConfig{Number: 3, Align: format.AlignRight},
		format.ColumnConfig{Number: 4, Align: format.AlignRight},
	)
	for _, r := range results {
		tb.Row(r.Type.String(), string(r.Status), format.FmtCount(r.Documents), r.Skipped, r.Index)
	}
	fmt.Fprintln(a.out, tb.String())
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(a.out, "%s: %s\n", r.Type, format.Truncate(r.Err.Error(), 200))
		}
	}
}

func (a *app) runListCases() error {
	org := organize.New(afero.NewOsFs(), a.cfg.ArtifactRoots())
	cases, err := org.ListCases()
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		fmt.Fprintln(a.out, "no cases found")
		return nil
	}

	manifest, err := runlog.Open(a.cfg.RunLogPath)
	if err != nil {
		return err
	}
	defer manifest.Close()

	tb := format.NewTable()
	header := []string{"Case"}
	for _, t := range artifact.All() {
		header = append(header, t.String())
	}
	header = append(header, "Last ingested")
	tb.Header(header...)
	for _, c := range cases {
		row := []any{c.Name}
		for _, t := range artifact.All() {
			row = append(row, c.Files[t])
		}
		row = append(row, lastRun(manifest, c.Name))
		tb.Row(row...)
	}
	fmt.Fprintln(a.out, tb.String())
	return nil
}

// lastRun summarizes the newest recorded ingestion for a case, or "-" when
// the manifest has none.
func lastRun(manifest *runlog.Store, caseName string) string {
	runs, err := manifest.ListRuns(caseName)
	if err != nil || len(runs) == 0 {
		return "-"
	}
	return fmt.Sprintf("%s %s", runs[0].Platform, runs[0].StartedAt)
}

func (a *app) runCleanCase() error {
	c := cleanup.New(afero.NewOsFs(), a.cfg, nil, nil)
	report, err := c.CleanCaseFiles(flags.cleanCase, flags.dryRun)
	if err != nil {
		return err
	}
	a.printFileReport(report)
	a.reportRemainingIndices(flags.cleanCase)
	if flags.cleanLogs {
		if err := a.cleanLogs(c); err != nil {
			return err
		}
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d paths could not be removed", len(report.Failed))
	}
	return nil
}

// reportRemainingIndices reminds the operator that file cleanup leaves the
// case's indices behind, using the indices past runs recorded.
func (a *app) reportRemainingIndices(caseName string) {
	manifest, err := runlog.Open(a.cfg.RunLogPath)
	if err != nil {
		return
	}
	defer manifest.Close()
	indices, err := manifest.IndicesForCase(caseName)
	if err != nil || len(indices) == 0 {
		return
	}
	fmt.Fprintf(a.out, "indices remain (use --clean-case-indices): %s\n", strings.Join(indices, ", "))
}

// runClean deletes the indices matching the base name (--index-name when
// set, otherwise --case-name).
func (a *app) runClean(ctx context.Context) error {
	base := flags.indexName
	if base == "" {
		base = flags.caseName
	}
	c, err := a.newBackendCleaner()
	if err != nil {
		return err
	}
	matched, err := c.CleanCaseIndices(ctx, base, flags.dryRun)
	if err != nil {
		return err
	}
	verb := "deleted"
	if flags.dryRun {
		verb = "matching"
	}
	a.printIndices(matched, verb)
	return nil
}

func (a *app) runCleanCaseIndices(ctx context.Context) error {
	c, err := a.newBackendCleaner()
	if err != nil {
		return err
	}
	matched, err := c.CleanCaseIndices(ctx, flags.cleanCaseIndices, flags.dryRun)
	if err != nil {
		return err
	}
	verb := "deleted"
	if flags.dryRun {
		verb = "matching"
	}
	a.printIndices(matched, verb)
	return nil
}

func (a *app) runCleanAllIndices(ctx context.Context) error {
	c, err := a.newBackendCleaner()
	if err != nil {
		return err
	}

	if flags.dryRun {
		matched, err := c.CleanAllIndices(ctx, false)
		if err != nil && !errors.Is(err, cleanup.ErrConfirmationRequired) {
			return err
		}
		a.printIndices(matched, "matching")
		return nil
	}

	matched, err := c.CleanAllIndices(ctx, flags.yes)
	if errors.Is(err, cleanup.ErrConfirmationRequired) {
		a.printIndices(matched, "matching")
		if err := a.confirmAll(len(matched)); err != nil {
			return err
		}
		matched, err = c.CleanAllIndices(ctx, true)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %d indices\n", len(matched))
	if flags.cleanLogs {
		return a.cleanLogs(c)
	}
	return nil
}

func (a *app) runCleanLogs() error {
	return a.cleanLogs(cleanup.New(afero.NewOsFs(), a.cfg, nil, nil))
}

func (a *app) cleanLogs(c *cleanup.Cleaner) error {
	report, err := c.CleanParserLogs(flags.dryRun)
	if err != nil {
		return err
	}
	a.printFileReport(report)
	return nil
}

func (a *app) newBackendCleaner() (*cleanup.Cleaner, error) {
	es, err := elastic.New(a.cfg.Elastic.Host, elastic.WithLogger(logging.New("elastic")))
	if err != nil {
		return nil, err
	}
	kb, err := kibana.New(a.cfg.Elastic.KibanaHost, kibana.WithLogger(logging.New("kibana")))
	if err != nil {
		return nil, err
	}
	return cleanup.New(afero.NewOsFs(), a.cfg, es, kb), nil
}

func (a *app) printFileReport(report *cleanup.FileReport) {
	verb := "removed"
	if flags.dryRun {
		verb = "would remove"
	}
	for _, f := range report.Files {
		fmt.Fprintf(a.out, "%s %s (%s)\n", verb, f.Path, format.FmtBytes(f.Size))
	}
	fmt.Fprintf(a.out, "%s %d files, %s total\n", verb, len(report.Files), format.FmtBytes(report.TotalBytes))
}

func (a *app) printIndices(names []string, verb string) {
	for _, name := range names {
		fmt.Fprintf(a.out, "%s index %s\n", verb, name)
	}
}

// confirmAll gates the destructive clean-all: without a terminal to answer
// on there is no interactive approval, and piped input does not count. Only
// --yes overrides.
func (a *app) confirmAll(count int) error {
	if !a.interactive() {
		return fmt.Errorf("refusing to delete %d indices without --yes: %w", count, cleanup.ErrConfirmationRequired)
	}
	if !a.confirm(fmt.Sprintf("Delete all %d indices?", count)) {
		return fmt.Errorf("aborted")
	}
	return nil
}

// interactive reports whether the input stream is a terminal.
func (a *app) interactive() bool {
	f, ok := a.in.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// confirm asks for interactive approval on stdin.
func (a *app) confirm(prompt string) bool {
	fmt.Fprintf(a.out, "%s [y/N]: ", prompt)
	sc := bufio.NewScanner(a.in)
	if !sc.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(sc.Text()))
	return answer == "y" || answer == "yes"
}
