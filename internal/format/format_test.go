package format_test

import (
	"strings"
	"testing"
	"time"

	"github.com/rastipwnerr/investigator/internal/format"
)

func TestBasicTable(t *testing.T) {
	tb := format.NewTable()
	tb.Header("Case", "Type", "Docs")
	tb.Row("case1", "evtx", 4120)
	tb.Row("case1", "mft", 88210)
	out := tb.String()

	// StyleLight renders headers uppercased.
	if !strings.Contains(out, "CASE") {
		t.Errorf("expected header 'CASE' in output:\n%s", out)
	}
	if !strings.Contains(out, "evtx") {
		t.Errorf("expected 'evtx' in output:\n%s", out)
	}
	if !strings.Contains(out, "88210") {
		t.Errorf("expected '88210' in output:\n%s", out)
	}
	if !strings.Contains(out, "───") {
		t.Errorf("expected box-drawing characters in output:\n%s", out)
	}
}

func TestTableWithFooter(t *testing.T) {
	tb := format.NewTable()
	tb.Header("Type", "Docs")
	tb.Row("evtx", 100)
	tb.Row("lnk", 200)
	tb.Footer("TOTAL", 300)
	out := tb.String()

	if !strings.Contains(out, "300") {
		t.Errorf("expected footer total in output:\n%s", out)
	}
}

func TestColumns_Alignment(t *testing.T) {
	tb := format.NewTable()
	tb.Header("Type", "Docs")
	tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
	tb.Row("evtx", 7)
	out := tb.String()
	if !strings.Contains(out, "evtx") {
		t.Errorf("expected row content:\n%s", out)
	}
}

func TestFmtBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{2048, "2.0 KiB"},
		{3 << 20, "3.0 MiB"},
		{5 << 30, "5.0 GiB"},
	}
	for _, tt := range tests {
		if got := format.FmtBytes(tt.in); got != tt.want {
			t.Errorf("FmtBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFmtCount(t *testing.T) {
	if got := format.FmtCount(950); got != "950" {
		t.Errorf("FmtCount(950) = %q", got)
	}
	if got := format.FmtCount(4120); got != "4.1K" {
		t.Errorf("FmtCount(4120) = %q", got)
	}
	if got := format.FmtCount(2_500_000); got != "2.5M" {
		t.Errorf("FmtCount(2500000) = %q", got)
	}
}

func TestFmtDuration(t *testing.T) {
	if got := format.FmtDuration(42 * time.Second); got != "42s" {
		t.Errorf("FmtDuration = %q", got)
	}
	if got := format.FmtDuration(95 * time.Second); got != "1m 35s" {
		t.Errorf("FmtDuration = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := format.Truncate("short", 10); got != "short" {
		t.Errorf("Truncate = %q", got)
	}
	if got := format.Truncate("a-very-long-case-name", 10); got != "a-very-..." {
		t.Errorf("Truncate = %q", got)
	}
}
