// Package mapper shapes parsed records into platform documents and writes
// them as JSON lines, one file per case and artifact type. Two target shapes
// exist: the index platform keys events on @timestamp, the timeline platform
// on datetime plus a timestamp description and a human message.
package mapper

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/rastipwnerr/investigator/internal/artifact"
	"github.com/rastipwnerr/investigator/internal/parse"
)

// Platform selects the output document shape.
type Platform string

const (
	ELK        Platform = "elk"
	Timesketch Platform = "timesketch"
)

// Valid reports whether p names a known platform.
func (p Platform) Valid() bool { return p == ELK || p == Timesketch }

// SourcedRecord pairs a parsed record with the evidence file it came from.
type SourcedRecord struct {
	parse.Record
	// Source is the evidence file name carried into every document.
	Source string
}

// Result summarizes one mapping pass.
type Result struct {
	// Written is the number of documents emitted.
	Written int
	// Skipped counts records dropped because no field yielded a usable
	// event time. Guessing a time would corrupt the timeline, so they are
	// dropped and surfaced here instead.
	Skipped int
	// Path is the JSONL file written, empty when no document survived.
	Path string
	// Docs holds the emitted documents in event-time order, ready for
	// bulk submission.
	Docs []map[string]any
}

// timestampDesc labels what the event time means per artifact type, shown
// next to every timeline event.
var timestampDesc = map[artifact.Type]string{
	artifact.Evtx:     "Event Logged",
	artifact.MFT:      "File Created",
	artifact.Amcache:  "Execution Evidence",
	artifact.Lnk:      "Shortcut Activity",
	artifact.Registry: "Key Last Write",
	artifact.Other:    "Event Time",
}

// Map converts records into platform documents for one case and artifact
// type and writes them to a JSONL file under outDir. Documents are sorted by
// event time. With zero surviving records no file is created.
func Map(records []SourcedRecord, p Platform, caseName string, t artifact.Type, outDir string) (*Result, error) {
	res := &Result{}

	docs := make([]map[string]any, 0, len(records))
	for _, r := range records {
		if r.Time.IsZero() {
			res.Skipped++
			continue
		}
		docs = append(docs, document(r.Record, p, caseName, t, r.Source))
	}
	res.Written = len(docs)
	if len(docs) == 0 {
		return res, nil
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return sortKey(docs[i], p) < sortKey(docs[j], p)
	})

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output dir")
	}
	path := filepath.Join(outDir, fmt.Sprintf("%s_%s.jsonl", caseName, t))
	if err := writeJSONL(path, docs); err != nil {
		return nil, err
	}
	res.Path = path
	res.Docs = docs
	return res, nil
}

// document builds one platform document. Both shapes carry the full
// flattened parser fields plus provenance tags; only the time envelope
// differs.
func document(r parse.Record, p Platform, caseName string, t artifact.Type, sourceFile string) map[string]any {
	doc := make(map[string]any, len(r.Fields)+6)
	for k, v := range r.Fields {
		doc[k] = v
	}
	doc["case"] = caseName
	doc["artifact_type"] = t.String()
	doc["source_file"] = sourceFile
	doc["parser"] = parserName(t)

	switch p {
	case Timesketch:
		doc["datetime"] = r.Time.UTC().Format(time.RFC3339Nano)
		doc["timestamp_desc"] = timestampDesc[t]
		doc["message"] = message(r.Fields, t)
	default:
		doc["@timestamp"] = r.Time.UTC().Format(time.RFC3339Nano)
	}
	return doc
}

func sortKey(doc map[string]any, p Platform) string {
	key := "@timestamp"
	if p == Timesketch {
		key = "datetime"
	}
	s, _ := doc[key].(string)
	return s
}

func parserName(t artifact.Type) string {
	switch t {
	case artifact.Evtx:
		return "evtx_dump"
	case artifact.MFT:
		return "MFTECmd"
	case artifact.Amcache:
		return "AmcacheParser"
	case artifact.Lnk:
		return "LECmd"
	case artifact.Registry:
		return "RECmd"
	}
	return "plaso"
}

// message derives the timeline summary line from whichever fields the
// artifact type reliably carries.
func message(fields map[string]any, t artifact.Type) string {
	get := func(keys ...string) string {
		for _, k := range keys {
			if s, ok := fields[k].(string); ok && s != "" {
				return s
			}
		}
		return ""
	}
	switch t {
	case artifact.Evtx:
		var id string
		if v, ok := fields["Event_System_EventID"]; ok && v != nil {
			id = fmt.Sprintf("%v", v)
		}
		provider := get("Event_System_Provider_attributes_Name")
		switch {
		case provider != "" && id != "":
			return fmt.Sprintf("%s event %s", provider, id)
		case provider != "":
			return provider
		case id != "":
			return "Event " + id
		}
	case artifact.MFT:
		if name := get("file_name", "filename"); name != "" {
			return name
		}
	case artifact.Amcache:
		if name := get("applicationname", "name", "fullpath"); name != "" {
			return name
		}
	case artifact.Lnk:
		if name := get("targetname", "absolutepath", "sourcefile"); name != "" {
			return name
		}
	case artifact.Registry:
		key := get("keypath", "key_path")
		if value := get("valuename", "value_name"); value != "" && key != "" {
			return key + "\\" + value
		}
		if key != "" {
			return key
		}
	default:
		if msg := get("message"); msg != "" {
			return msg
		}
	}
	return string(t) + " record"
}

func writeJSONL(path string, docs []map[string]any) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create jsonl")
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			f.Close()
			return errors.Wrap(err, "encode document")
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrap(err, "flush jsonl")
	}
	return errors.Wrap(f.Close(), "close jsonl")
}
