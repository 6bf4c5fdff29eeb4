package parse

import (
	"strings"
	"time"
)

// timestampLayouts are tried in order when pulling a timestamp out of parser
// output. Fractional seconds are optional in every layout that carries them.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp interprets a parser-emitted timestamp string as UTC.
// Windows tools emit the FILETIME epoch (1601-01-01) for unset fields; such
// sentinels are rejected along with anything unparseable, returning a zero
// time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		t = t.UTC()
		if t.Year() <= 1601 {
			return time.Time{}
		}
		return t
	}
	return time.Time{}
}
