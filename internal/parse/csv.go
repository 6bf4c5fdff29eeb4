package parse

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// normalizeKey rewrites a CSV header into a stable field name: lowercase,
// spaces and slashes become underscores, parentheses are dropped.
func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '/', '\\':
			b.WriteByte('_')
		case '(', ')':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// readCSVRecords converts one CSV file into records. Empty cells are
// dropped. timeFields names the normalized columns that may carry the event
// time; with latest the most recent parseable column becomes the record's
// Time, otherwise the first in priority order wins. Every parseable time
// column additionally gets a <name>_iso companion field in RFC 3339 UTC.
func readCSVRecords(path string, timeFields []string, latest bool) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = normalizeKey(h)
	}

	var records []Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		fields := make(map[string]any, len(keys))
		for i, v := range row {
			if i >= len(keys) {
				break
			}
			if strings.TrimSpace(v) == "" {
				continue
			}
			fields[keys[i]] = v
		}

		var eventTime time.Time
		for _, tf := range timeFields {
			raw, ok := fields[tf].(string)
			if !ok {
				continue
			}
			t := ParseTimestamp(raw)
			if t.IsZero() {
				continue
			}
			fields[tf+"_iso"] = t.Format(time.RFC3339Nano)
			if latest {
				if t.After(eventTime) {
					eventTime = t
				}
			} else if eventTime.IsZero() {
				eventTime = t
			}
		}
		records = append(records, Record{Fields: fields, Time: eventTime})
	}
	return records, nil
}

// collectCSVRecords parses every CSV file under dir (the scratch directory a
// tool wrote into) and merges their records.
func collectCSVRecords(dir string, timeFields []string, latest bool) ([]Record, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	var all []Record
	for _, m := range matches {
		records, err := readCSVRecords(m, timeFields, latest)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}
