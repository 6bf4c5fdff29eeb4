package parse

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rastipwnerr/investigator/internal/artifact"
)

// amcacheTimeFields are the normalized AmcacheParser columns that may carry
// the event time, in priority order across the tool's output files.
var amcacheTimeFields = []string{
	"filekeylastwritetimestamp",
	"keylastwritetimestamp",
	"linkdate",
	"created",
	"lastmodified",
}

// amcacheParser runs AmcacheParser with -i (include linked devices and
// program entries), which writes several CSVs into a scratch directory.
type amcacheParser struct {
	bin    string
	runner *Runner
}

func (p *amcacheParser) Type() artifact.Type { return artifact.Amcache }

func (p *amcacheParser) Inputs(dir string) ([]string, error) {
	return discover(dir, func(name string) bool {
		lower := strings.ToLower(name)
		if !strings.Contains(lower, "amcache") {
			return false
		}
		// Hive files only; transaction logs are replayed by the tool itself.
		switch filepath.Ext(lower) {
		case ".hve", "":
			return true
		}
		return false
	})
}

func (p *amcacheParser) Parse(ctx context.Context, input string) ([]Record, error) {
	tmp, err := tempDir("investigator-amcache-")
	if err != nil {
		return nil, &ParserError{Type: artifact.Amcache, Tool: "AmcacheParser", Err: err}
	}
	defer removeAllRetry(tmp)

	if _, err := p.runner.Run(ctx, p.bin, "-f", input, "--csv", tmp, "-i"); err != nil {
		return nil, &ParserError{Type: artifact.Amcache, Tool: "AmcacheParser", Err: err}
	}
	records, err := collectCSVRecords(tmp, amcacheTimeFields, false)
	if err != nil {
		return nil, &ParserError{Type: artifact.Amcache, Tool: "AmcacheParser", Err: err}
	}
	return records, nil
}
