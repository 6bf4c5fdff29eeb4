// Package ingest runs the case pipeline: it walks each requested artifact
// type through parse, map and platform submission, isolating failures so one
// bad type never stops the rest. Outcomes land in the run manifest and in a
// per-type summary for the CLI.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/rastipwnerr/investigator/internal/artifact"
	"github.com/rastipwnerr/investigator/internal/config"
	"github.com/rastipwnerr/investigator/internal/elastic"
	"github.com/rastipwnerr/investigator/internal/logging"
	"github.com/rastipwnerr/investigator/internal/mapper"
	"github.com/rastipwnerr/investigator/internal/parse"
	"github.com/rastipwnerr/investigator/internal/runlog"
	"github.com/rastipwnerr/investigator/internal/timesketch"
	"github.com/rastipwnerr/investigator/internal/tools"
)

// Status classifies one artifact type's pipeline outcome.
type Status string

const (
	StatusOK          Status = "ok"
	StatusNoFiles     Status = "no_files"
	StatusToolMissing Status = "tool_missing"
	StatusParseFailed Status = "parse_failed"
	StatusMapEmpty    Status = "map_empty"
	StatusSendFailed  Status = "send_failed"
)

// TypeResult is one artifact type's pipeline outcome.
type TypeResult struct {
	Type      artifact.Type
	Status    Status
	Index     string
	Documents int
	Skipped   int
	Err       error
}

// Succeeded reports whether the type produced ingested documents.
func (r TypeResult) Succeeded() bool { return r.Status == StatusOK }

// Indexer is the slice of the Elasticsearch client the pipeline needs.
type Indexer interface {
	EnsureIndex(ctx context.Context, name string) error
	BulkIngest(ctx context.Context, index string, docs []map[string]any, batchSize int) (*elastic.BulkReport, error)
}

// PatternCreator registers the case's wildcard index pattern once ingestion
// finished.
type PatternCreator interface {
	CreateIndexPattern(ctx context.Context, base string) error
	SetTimezoneUTC(ctx context.Context) error
}

// TimelineImporter is the slice of the Timesketch client the pipeline needs.
type TimelineImporter interface {
	GetOrCreateSketch(ctx context.Context, name string) (*timesketch.Sketch, error)
	ImportTimeline(ctx context.Context, sketchID int, timelineName, path string) error
}

// Options steer one pipeline run.
type Options struct {
	Platform mapper.Platform
	// Types restricts the run; empty means all parsable types.
	Types []artifact.Type
	// SketchName is required for the timesketch platform.
	SketchName string
	// IndexName overrides the per-type index naming; every type's
	// documents land in this one index.
	IndexName string
	// Parallel processes up to N artifact types concurrently; values
	// below 2 keep the sequential order.
	Parallel int
}

// Pipeline wires the per-case ingestion flow.
type Pipeline struct {
	cfg      *config.Config
	runner   *parse.Runner
	indexer  Indexer
	patterns PatternCreator
	timeline TimelineImporter
	manifest *runlog.Store
	logger   *slog.Logger
}

// New builds a Pipeline. indexer and patterns may be nil for timesketch-only
// use, timeline may be nil for elk-only use, manifest may be nil to skip run
// recording.
func New(cfg *config.Config, indexer Indexer, patterns PatternCreator, timeline TimelineImporter, manifest *runlog.Store) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		runner:   parse.NewRunner(cfg.ParserTimeout),
		indexer:  indexer,
		patterns: patterns,
		timeline: timeline,
		manifest: manifest,
		logger:   logging.New("ingest"),
	}
}

// Run processes one case and returns the per-type outcomes in artifact-type
// order. An error is returned only when the run as a whole could not start
// or every requested type failed outright.
func (p *Pipeline) Run(ctx context.Context, caseName string, opts Options) ([]TypeResult, error) {
	if !opts.Platform.Valid() {
		return nil, fmt.Errorf("unknown platform %q", opts.Platform)
	}
	if opts.Platform == mapper.Timesketch && opts.SketchName == "" {
		return nil, fmt.Errorf("timesketch platform requires a sketch name")
	}

	types := opts.Types
	if len(types) == 0 {
		types = artifact.Parsable()
	}

	var runID string
	if p.manifest != nil {
		id, err := p.manifest.StartRun(caseName, string(opts.Platform))
		if err != nil {
			return nil, err
		}
		runID = id
	}

	results := make([]TypeResult, len(types))
	if opts.Parallel > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Parallel)
		for i, t := range types {
			i, t := i, t
			g.Go(func() error {
				results[i] = p.runType(gctx, caseName, t, opts)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, t := range types {
			results[i] = p.runType(ctx, caseName, t, opts)
		}
	}

	if p.manifest != nil {
		for _, r := range results {
			entry := runlog.TypeEntry{
				ArtifactType: r.Type.String(),
				IndexName:    r.Index,
				Documents:    r.Documents,
				Skipped:      r.Skipped,
				Status:       string(r.Status),
			}
			if r.Err != nil {
				entry.Detail = r.Err.Error()
			}
			if err := p.manifest.RecordType(runID, entry); err != nil {
				p.logger.Warn("record run outcome", "error", err)
			}
		}
		if err := p.manifest.FinishRun(runID); err != nil {
			p.logger.Warn("finish run", "error", err)
		}
	}

	if opts.Platform == mapper.ELK && p.patterns != nil {
		p.registerPattern(ctx, caseName, results)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed == len(results) && failed > 0 {
		return results, fmt.Errorf("all %d artifact types failed", failed)
	}
	return results, nil
}

// runType drives one artifact type end to end. Every failure is folded into
// the result; nothing escapes to abort sibling types.
func (p *Pipeline) runType(ctx context.Context, caseName string, t artifact.Type, opts Options) TypeResult {
	res := TypeResult{Type: t}
	log := p.logger.With("case", caseName, "type", t.String())

	dir := filepath.Join(p.cfg.ArtifactRoot(t), caseName)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		res.Status = StatusNoFiles
		return res
	}

	parser, err := parse.For(t, p.cfg, p.runner)
	if err != nil {
		if tools.IsToolMissing(err) {
			log.Warn("parser binary not found, skipping type", "error", err)
			res.Status = StatusToolMissing
			res.Err = err
			return res
		}
		res.Status = StatusParseFailed
		res.Err = err
		return res
	}

	inputs, err := parser.Inputs(dir)
	if err != nil {
		res.Status = StatusParseFailed
		res.Err = err
		return res
	}
	if len(inputs) == 0 {
		res.Status = StatusNoFiles
		return res
	}

	var records []mapper.SourcedRecord
	for _, input := range inputs {
		parsed, err := parser.Parse(ctx, input)
		if err != nil {
			log.Error("parser failed", "input", input, "error", err)
			res.Status = StatusParseFailed
			res.Err = err
			return res
		}
		source := filepath.Base(input)
		for _, r := range parsed {
			records = append(records, mapper.SourcedRecord{Record: r, Source: source})
		}
	}
	log.Info("parsed", "inputs", len(inputs), "records", len(records))

	outDir := p.cfg.JSONDir(string(opts.Platform), caseName)
	mapped, err := mapper.Map(records, opts.Platform, caseName, t, outDir)
	if err != nil {
		res.Status = StatusParseFailed
		res.Err = err
		return res
	}
	res.Documents = mapped.Written
	res.Skipped = mapped.Skipped
	if mapped.Written == 0 {
		res.Status = StatusMapEmpty
		return res
	}

	if err := p.send(ctx, caseName, t, opts, mapped); err != nil {
		res.Status = StatusSendFailed
		res.Err = err
		return res
	}
	if opts.Platform == mapper.ELK {
		res.Index = resolveIndex(caseName, t, opts)
	}
	res.Status = StatusOK
	return res
}

func (p *Pipeline) send(ctx context.Context, caseName string, t artifact.Type, opts Options, mapped *mapper.Result) error {
	switch opts.Platform {
	case mapper.ELK:
		if p.indexer == nil {
			return fmt.Errorf("no index backend configured")
		}
		index := resolveIndex(caseName, t, opts)
		if err := p.indexer.EnsureIndex(ctx, index); err != nil {
			return err
		}
		report, err := p.indexer.BulkIngest(ctx, index, mapped.Docs, p.cfg.BulkBatchSize)
		if err != nil {
			return err
		}
		if report.Failed > 0 {
			p.logger.Warn("documents rejected", "index", index, "failed", report.Failed)
		}
		return nil
	case mapper.Timesketch:
		if p.timeline == nil {
			return fmt.Errorf("no timeline backend configured")
		}
		sketch, err := p.timeline.GetOrCreateSketch(ctx, opts.SketchName)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("%s %s", caseName, t)
		return p.timeline.ImportTimeline(ctx, sketch.ID, name, mapped.Path)
	}
	return fmt.Errorf("unknown platform %q", opts.Platform)
}

// registerPattern makes the freshly ingested indices visible: one wildcard
// index pattern on the case base covers the whole <case>_<type> family, with
// the display timezone pinned to UTC. Failures here are logged, not fatal;
// the documents are already ingested.
func (p *Pipeline) registerPattern(ctx context.Context, caseName string, results []TypeResult) {
	ingested := false
	for _, r := range results {
		if r.Succeeded() && r.Index != "" {
			ingested = true
			break
		}
	}
	if !ingested {
		return
	}
	base := elastic.SanitizeIndexName(caseName)
	if err := p.patterns.CreateIndexPattern(ctx, base); err != nil {
		p.logger.Warn("create index pattern", "base", base, "error", err)
		return
	}
	if err := p.patterns.SetTimezoneUTC(ctx); err != nil {
		p.logger.Warn("set display timezone", "error", err)
	}
}

// resolveIndex picks the target index: the caller's override when set,
// otherwise the deterministic per-case, per-type name.
func resolveIndex(caseName string, t artifact.Type, opts Options) string {
	if opts.IndexName != "" {
		return elastic.SanitizeIndexName(opts.IndexName)
	}
	return elastic.SanitizeIndexName(fmt.Sprintf("%s_%s", caseName, t))
}
