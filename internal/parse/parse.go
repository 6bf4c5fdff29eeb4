// Package parse drives the external forensic parser binaries and converts
// their native output (JSON lines or CSV) into timestamped records ready for
// mapping. Each artifact type is bound to exactly one parser through a fixed
// dispatch table; a failure in one type never aborts the others.
package parse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/rastipwnerr/investigator/internal/artifact"
	"github.com/rastipwnerr/investigator/internal/logging"
)

// Record is one structured fact emitted by an external parser. Time is the
// record's resolved event time, zero when no field yielded a usable
// timestamp; such records are later dropped and counted by the mapper.
type Record struct {
	Fields map[string]any
	Time   time.Time
}

// Parser converts one artifact type's evidence files into records.
type Parser interface {
	// Type is the artifact category this parser handles.
	Type() artifact.Type
	// Inputs lists the evidence files (or, for directory-oriented tools,
	// the directory itself) to parse under the case's type directory.
	Inputs(dir string) ([]string, error)
	// Parse invokes the external binary on one input and returns its
	// records. The context bounds the subprocess.
	Parse(ctx context.Context, input string) ([]Record, error)
}

// ParserError reports a failed external parser invocation: non-zero exit,
// timeout, or unusable output. The affected artifact type's ingestion is
// skipped; other types proceed.
type ParserError struct {
	Type artifact.Type
	Tool string
	Err  error
}

func (e *ParserError) Error() string {
	return fmt.Sprintf("%s parser (%s): %v", e.Type, e.Tool, e.Err)
}

func (e *ParserError) Unwrap() error { return e.Err }

// IsParserFailure reports whether err is a ParserError.
func IsParserFailure(err error) bool {
	var pe *ParserError
	return errors.As(err, &pe)
}

// Runner executes external binaries with a bounded wait.
type Runner struct {
	Timeout time.Duration
	logger  *slog.Logger
}

// NewRunner returns a Runner with the given per-invocation timeout.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Runner{Timeout: timeout, logger: logging.New("parse")}
}

// Run executes bin with args and returns its stdout. Stderr is captured for
// error reporting only. The invocation is killed when the timeout or the
// parent context expires.
func (r *Runner) Run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("exec", "bin", bin, "args", args)
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("timed out after %s", r.Timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, truncate(stderr.Bytes(), 300))
	}
	return stdout.Bytes(), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// tempDir creates a scratch directory for tools that only emit CSV files.
func tempDir(prefix string) (string, error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	return dir, nil
}

// removeAllRetry removes a directory tree, retrying briefly: some tools keep
// handles open for a moment after exiting.
func removeAllRetry(path string) {
	for attempt := 0; attempt < 5; attempt++ {
		if err := os.RemoveAll(path); err == nil {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
}
