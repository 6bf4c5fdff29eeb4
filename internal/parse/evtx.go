package parse

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rastipwnerr/investigator/internal/artifact"
	"github.com/rastipwnerr/investigator/internal/flatten"
)

// evtxTimePath locates the event creation time inside one evtx_dump JSON
// record. The "#" needs escaping so gjson does not treat it as an array
// query.
const evtxTimePath = `Event.System.TimeCreated.\#attributes.SystemTime`

// evtxParser runs evtx_dump, which writes one JSON document per event log
// record to stdout.
type evtxParser struct {
	bin    string
	runner *Runner
}

func (p *evtxParser) Type() artifact.Type { return artifact.Evtx }

func (p *evtxParser) Inputs(dir string) ([]string, error) {
	return discover(dir, func(name string) bool {
		return strings.EqualFold(filepath.Ext(name), ".evtx")
	})
}

func (p *evtxParser) Parse(ctx context.Context, input string) ([]Record, error) {
	out, err := p.runner.Run(ctx, p.bin, input, "-o", "json", "--no-indent")
	if err != nil {
		return nil, &ParserError{Type: artifact.Evtx, Tool: "evtx_dump", Err: err}
	}
	return decodeEvtx(out)
}

// decodeEvtx converts evtx_dump JSON-lines output into flattened records.
func decodeEvtx(out []byte) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(bytes.NewReader(out))
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
		t := ParseTimestamp(gjson.GetBytes(line, evtxTimePath).String())
		records = append(records, Record{Fields: fields, Time: t})
	}
	if err := sc.Err(); err != nil {
		return nil, &ParserError{Type: artifact.Evtx, Tool: "evtx_dump", Err: err}
	}
	return records, nil
}
