package elastic

import "strings"

const maxIndexNameLen = 255

// SanitizeIndexName rewrites s into a valid Elasticsearch index name:
// lowercase, forbidden characters replaced with underscores, underscore
// runs collapsed and trimmed, forbidden leading characters stripped,
// truncated to the length limit. An empty or fully-stripped name becomes
// "unnamed".
func SanitizeIndexName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\', '/', '*', '?', '"', '<', '>', '|', ' ', ',', '#', ':':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	out = strings.Trim(out, "_")
	out = strings.TrimLeft(out, "-_+.")
	if out == "" || out == "." || out == ".." {
		return "unnamed"
	}
	if len(out) > maxIndexNameLen {
		out = out[:maxIndexNameLen]
	}
	return out
}
