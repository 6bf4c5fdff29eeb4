package parse

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rastipwnerr/investigator/internal/artifact"
	"github.com/rastipwnerr/investigator/internal/flatten"
)

// plasoParser covers the catch-all artifact directory with the Plaso
// toolchain: log2timeline builds a storage file from the whole directory,
// psort renders it as JSON lines. Unlike the other parsers its input is the
// directory itself, not individual files.
type plasoParser struct {
	log2timeline string
	psort        string
	runner       *Runner
}

func (p *plasoParser) Type() artifact.Type { return artifact.Other }

func (p *plasoParser) Inputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return []string{dir}, nil
}

func (p *plasoParser) Parse(ctx context.Context, input string) ([]Record, error) {
	if p.psort == "" {
		return nil, &ParserError{Type: artifact.Other, Tool: "psort.py", Err: os.ErrNotExist}
	}
	tmp, err := tempDir("investigator-plaso-")
	if err != nil {
		return nil, &ParserError{Type: artifact.Other, Tool: "log2timeline.py", Err: err}
	}
	defer removeAllRetry(tmp)

	storage := filepath.Join(tmp, "timeline.plaso")
	if _, err := p.runner.Run(ctx, p.log2timeline, "--storage-file", storage, input); err != nil {
		return nil, &ParserError{Type: artifact.Other, Tool: "log2timeline.py", Err: err}
	}
	rendered := filepath.Join(tmp, "timeline.jsonl")
	if _, err := p.runner.Run(ctx, p.psort, "-o", "json_line", "-w", rendered, storage); err != nil {
		return nil, &ParserError{Type: artifact.Other, Tool: "psort.py", Err: err}
	}

	data, err := os.ReadFile(rendered)
	if err != nil {
		return nil, &ParserError{Type: artifact.Other, Tool: "psort.py", Err: err}
	}
	return decodePlaso(data)
}

// decodePlaso converts psort json_line output into flattened records. The
// event time comes from the ISO "datetime" field, falling back to the
// microsecond "timestamp" field.
func decodePlaso(data []byte) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || !gjson.ValidBytes(line) {
			continue
		}
		fields, err := flatten.FromJSON(line)
		if err != nil {
			continue
		}
		t := ParseTimestamp(gjson.GetBytes(line, "datetime").String())
		if t.IsZero() {
			if micros := gjson.GetBytes(line, "timestamp").Int(); micros > 0 {
				t = time.UnixMicro(micros).UTC()
			}
		}
		records = append(records, Record{Fields: fields, Time: t})
	}
	if err := sc.Err(); err != nil {
		return nil, &ParserError{Type: artifact.Other, Tool: "psort.py", Err: err}
	}
	return records, nil
}
