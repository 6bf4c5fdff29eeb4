package parse

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rastipwnerr/investigator/internal/artifact"
)

// lnkTimeFields are the normalized LECmd columns that may carry the event
// time, in priority order. Source times describe the .lnk file itself,
// target times its referenced file.
var lnkTimeFields = []string{
	"sourcecreated",
	"sourcemodified",
	"sourceaccessed",
	"targetcreated",
	"targetmodified",
	"targetaccessed",
	"trackersourcecreated",
}

// lnkParser runs LECmd per shortcut file, collecting its CSV output from a
// scratch directory.
type lnkParser struct {
	bin    string
	runner *Runner
}

func (p *lnkParser) Type() artifact.Type { return artifact.Lnk }

func (p *lnkParser) Inputs(dir string) ([]string, error) {
	return discover(dir, func(name string) bool {
		return strings.EqualFold(filepath.Ext(name), ".lnk")
	})
}

func (p *lnkParser) Parse(ctx context.Context, input string) ([]Record, error) {
	tmp, err := tempDir("investigator-lnk-")
	if err != nil {
		return nil, &ParserError{Type: artifact.Lnk, Tool: "LECmd", Err: err}
	}
	defer removeAllRetry(tmp)

	if _, err := p.runner.Run(ctx, p.bin, "-f", input, "--csv", tmp); err != nil {
		return nil, &ParserError{Type: artifact.Lnk, Tool: "LECmd", Err: err}
	}
	records, err := collectCSVRecords(tmp, lnkTimeFields, false)
	if err != nil {
		return nil, &ParserError{Type: artifact.Lnk, Tool: "LECmd", Err: err}
	}
	return records, nil
}
