package parse

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rastipwnerr/investigator/internal/artifact"
)

// mftTimeFields are the normalized MFTECmd columns that may carry the event
// time. 0x10 is $STANDARD_INFORMATION, 0x30 is $FILE_NAME; the most recent
// across both attributes becomes the record time.
var mftTimeFields = []string{
	"created0x10",
	"lastmodified0x10",
	"lastrecordchange0x10",
	"lastaccess0x10",
	"created0x30",
	"lastmodified0x30",
	"lastrecordchange0x30",
	"lastaccess0x30",
}

// mftParser runs MFTECmd, which writes a single CSV into a scratch
// directory.
type mftParser struct {
	bin    string
	runner *Runner
}

func (p *mftParser) Type() artifact.Type { return artifact.MFT }

func (p *mftParser) Inputs(dir string) ([]string, error) {
	return discover(dir, func(name string) bool {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "$mft") || strings.HasSuffix(lower, ".mft") {
			return true
		}
		return filepath.Ext(lower) == "" && strings.Contains(lower, "mft")
	})
}

func (p *mftParser) Parse(ctx context.Context, input string) ([]Record, error) {
	tmp, err := tempDir("investigator-mft-")
	if err != nil {
		return nil, &ParserError{Type: artifact.MFT, Tool: "MFTECmd", Err: err}
	}
	defer removeAllRetry(tmp)

	if _, err := p.runner.Run(ctx, p.bin, "-f", input, "--csv", tmp, "--csvf", "output.csv"); err != nil {
		return nil, &ParserError{Type: artifact.MFT, Tool: "MFTECmd", Err: err}
	}
	records, err := collectCSVRecords(tmp, mftTimeFields, true)
	if err != nil {
		return nil, &ParserError{Type: artifact.MFT, Tool: "MFTECmd", Err: err}
	}
	return records, nil
}
