package main

import (
	"fmt"

	"github.com/rastipwnerr/investigator/internal/artifact"
	"github.com/rastipwnerr/investigator/internal/mapper"
)

type mode int

const (
	modeNone mode = iota
	modeOrganize
	modeIngest
	modeListCases
	modeClean
	modeCleanCase
	modeCleanCaseIndices
	modeCleanAllIndices
	modeCleanLogs
)

// cliFlags is the full flag surface, kept in one struct so validation is
// testable without cobra.
type cliFlags struct {
	configPath string
	logLevel   string
	logFormat  string

	organize  bool
	sourceDir string
	move      bool

	caseName   string
	platform   string
	evtx       bool
	mft        bool
	amcache    bool
	lnk        bool
	registry   bool
	plaso      bool
	allTypes   bool
	indexName  string
	sketchName string
	parallel   int

	listCases bool

	clean            bool
	cleanCase        string
	cleanCaseIndices string
	cleanAllIndices  bool
	cleanLogs        bool
	dryRun           bool
	yes              bool
}

// selectMode maps the flag surface onto exactly one mode and validates the
// required combinations up front, before any backend or parser is touched.
func selectMode(f *cliFlags) (mode, error) {
	var selected []mode
	if f.organize {
		selected = append(selected, modeOrganize)
	}
	if f.listCases {
		selected = append(selected, modeListCases)
	}
	if f.clean {
		selected = append(selected, modeClean)
	}
	if f.cleanCase != "" {
		selected = append(selected, modeCleanCase)
	}
	if f.cleanCaseIndices != "" {
		selected = append(selected, modeCleanCaseIndices)
	}
	if f.cleanAllIndices {
		selected = append(selected, modeCleanAllIndices)
	}
	if f.platform != "" && !f.organize && !f.clean {
		selected = append(selected, modeIngest)
	}
	// --clean-logs rides along with a clean mode or stands alone.
	if f.cleanLogs && len(selected) == 0 {
		selected = append(selected, modeCleanLogs)
	}

	if len(selected) == 0 {
		return modeNone, fmt.Errorf("no mode selected: pass --organize, --platform, --list-cases or a clean flag")
	}
	if len(selected) > 1 {
		return modeNone, fmt.Errorf("conflicting modes: pick one of organize, ingest, list or clean")
	}

	m := selected[0]
	switch m {
	case modeOrganize:
		if f.sourceDir == "" {
			return modeNone, fmt.Errorf("--organize requires --source-dir")
		}
		if f.caseName == "" {
			return modeNone, fmt.Errorf("--organize requires --case-name")
		}
	case modeIngest:
		if f.caseName == "" {
			return modeNone, fmt.Errorf("--platform requires --case-name")
		}
		p := mapper.Platform(f.platform)
		if !p.Valid() {
			return modeNone, fmt.Errorf("unknown platform %q: use elk or timesketch", f.platform)
		}
		if p == mapper.Timesketch && f.sketchName == "" {
			return modeNone, fmt.Errorf("--platform timesketch requires --sketch-name")
		}
		if f.parallel < 1 {
			return modeNone, fmt.Errorf("--parallel must be at least 1")
		}
	case modeClean:
		if f.platform != "elk" {
			return modeNone, fmt.Errorf("--clean requires --platform elk")
		}
		if f.caseName == "" && f.indexName == "" {
			return modeNone, fmt.Errorf("--clean requires --case-name or --index-name")
		}
	}
	return m, nil
}

// selectedTypes returns the artifact types the type flags name. No type
// flags selects the five dedicated parsers; --all additionally covers the
// catch-all directory via Plaso.
func selectedTypes(f *cliFlags) []artifact.Type {
	if f.allTypes {
		return artifact.All()
	}
	var types []artifact.Type
	if f.evtx {
		types = append(types, artifact.Evtx)
	}
	if f.mft {
		types = append(types, artifact.MFT)
	}
	if f.amcache {
		types = append(types, artifact.Amcache)
	}
	if f.lnk {
		types = append(types, artifact.Lnk)
	}
	if f.registry {
		types = append(types, artifact.Registry)
	}
	if f.plaso {
		types = append(types, artifact.Other)
	}
	if len(types) == 0 {
		return artifact.Parsable()
	}
	return types
}
