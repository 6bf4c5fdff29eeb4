package main

import (
	"testing"

	"github.com/rastipwnerr/investigator/internal/artifact"
)

func TestSelectMode_Organize(t *testing.T) {
	f := &cliFlags{organize: true, sourceDir: "./dump", caseName: "case1"}
	m, err := selectMode(f)
	if err != nil {
		t.Fatalf("selectMode: %v", err)
	}
	if m != modeOrganize {
		t.Errorf("mode = %v, want organize", m)
	}
}

func TestSelectMode_OrganizeMissingSource(t *testing.T) {
	f := &cliFlags{organize: true, caseName: "case1"}
	if _, err := selectMode(f); err == nil {
		t.Fatal("expected error without --source-dir")
	}
}

func TestSelectMode_IngestELK(t *testing.T) {
	f := &cliFlags{caseName: "case1", platform: "elk", parallel: 1}
	m, err := selectMode(f)
	if err != nil {
		t.Fatalf("selectMode: %v", err)
	}
	if m != modeIngest {
		t.Errorf("mode = %v, want ingest", m)
	}
}

func TestSelectMode_TimesketchNeedsSketchName(t *testing.T) {
	f := &cliFlags{caseName: "case1", platform: "timesketch", parallel: 1}
	if _, err := selectMode(f); err == nil {
		t.Fatal("expected error without --sketch-name")
	}

	f.sketchName = "intrusion"
	if _, err := selectMode(f); err != nil {
		t.Fatalf("selectMode with sketch name: %v", err)
	}
}

func TestSelectMode_UnknownPlatform(t *testing.T) {
	f := &cliFlags{caseName: "case1", platform: "splunk", parallel: 1}
	if _, err := selectMode(f); err == nil {
		t.Fatal("expected error for unknown platform")
	}
}

func TestSelectMode_NoMode(t *testing.T) {
	if _, err := selectMode(&cliFlags{}); err == nil {
		t.Fatal("expected error with no flags")
	}
}

func TestSelectMode_Conflicting(t *testing.T) {
	f := &cliFlags{listCases: true, cleanCase: "case1"}
	if _, err := selectMode(f); err == nil {
		t.Fatal("expected error for conflicting modes")
	}
}

func TestSelectMode_CleanVariants(t *testing.T) {
	tests := []struct {
		f    cliFlags
		want mode
	}{
		{cliFlags{cleanCase: "case1"}, modeCleanCase},
		{cliFlags{cleanCaseIndices: "case1"}, modeCleanCaseIndices},
		{cliFlags{cleanAllIndices: true}, modeCleanAllIndices},
		{cliFlags{cleanLogs: true}, modeCleanLogs},
		{cliFlags{cleanAllIndices: true, cleanLogs: true}, modeCleanAllIndices},
		{cliFlags{clean: true, platform: "elk", caseName: "case1"}, modeClean},
		{cliFlags{clean: true, platform: "elk", indexName: "case1_custom"}, modeClean},
	}
	for _, tt := range tests {
		m, err := selectMode(&tt.f)
		if err != nil {
			t.Errorf("selectMode(%+v): %v", tt.f, err)
			continue
		}
		if m != tt.want {
			t.Errorf("selectMode(%+v) = %v, want %v", tt.f, m, tt.want)
		}
	}
}

func TestSelectMode_CleanRequiresELK(t *testing.T) {
	f := &cliFlags{clean: true, platform: "timesketch", caseName: "case1"}
	if _, err := selectMode(f); err == nil {
		t.Fatal("expected error for --clean without --platform elk")
	}

	f = &cliFlags{clean: true, platform: "elk"}
	if _, err := selectMode(f); err == nil {
		t.Fatal("expected error for --clean without a base name")
	}
}

func TestSelectedTypes(t *testing.T) {
	if got := selectedTypes(&cliFlags{}); len(got) != len(artifact.Parsable()) {
		t.Errorf("no flags should select the dedicated parsers, got %v", got)
	}
	if got := selectedTypes(&cliFlags{allTypes: true, evtx: true}); len(got) != len(artifact.All()) {
		t.Errorf("--all should select every type, got %v", got)
	}

	got := selectedTypes(&cliFlags{evtx: true, registry: true})
	if len(got) != 2 || got[0] != artifact.Evtx || got[1] != artifact.Registry {
		t.Errorf("unexpected selection: %v", got)
	}
}
