package parse

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rastipwnerr/investigator/internal/artifact"
	"github.com/rastipwnerr/investigator/internal/config"
	"github.com/rastipwnerr/investigator/internal/tools"
)

// binding ties an artifact type to its external tool and parser constructor.
type binding struct {
	tool  string
	build func(bin string, cfg *config.Config, r *Runner) Parser
}

var bindings = map[artifact.Type]binding{
	artifact.Evtx: {
		tool:  "evtx_dump",
		build: func(bin string, _ *config.Config, r *Runner) Parser { return &evtxParser{bin: bin, runner: r} },
	},
	artifact.MFT: {
		tool:  "MFTECmd",
		build: func(bin string, _ *config.Config, r *Runner) Parser { return &mftParser{bin: bin, runner: r} },
	},
	artifact.Amcache: {
		tool:  "AmcacheParser",
		build: func(bin string, _ *config.Config, r *Runner) Parser { return &amcacheParser{bin: bin, runner: r} },
	},
	artifact.Lnk: {
		tool:  "LECmd",
		build: func(bin string, _ *config.Config, r *Runner) Parser { return &lnkParser{bin: bin, runner: r} },
	},
	artifact.Registry: {
		tool: "RECmd",
		build: func(bin string, cfg *config.Config, r *Runner) Parser {
			return &registryParser{bin: bin, batch: cfg.Tools.RegistryBatch, runner: r}
		},
	},
	artifact.Other: {
		tool: "log2timeline.py",
		build: func(bin string, cfg *config.Config, r *Runner) Parser {
			psort, _ := tools.Find(cfg.Tools.CandidatePaths("psort.py"), "psort.py")
			return &plasoParser{log2timeline: bin, psort: psort, runner: r}
		},
	},
}

// For resolves the parser bound to an artifact type. The external binary is
// located up front so a missing tool surfaces before any work starts; the
// returned error satisfies tools.IsToolMissing in that case.
func For(t artifact.Type, cfg *config.Config, r *Runner) (Parser, error) {
	b, ok := bindings[t]
	if !ok {
		return nil, &ParserError{Type: t, Err: errUnknownType}
	}
	bin, err := tools.Find(cfg.Tools.CandidatePaths(b.tool), b.tool)
	if err != nil {
		return nil, err
	}
	return b.build(bin, cfg, r), nil
}

var errUnknownType = unknownTypeError{}

type unknownTypeError struct{}

func (unknownTypeError) Error() string { return "no parser bound to artifact type" }

// discover walks dir recursively and returns the files keep accepts, sorted
// for deterministic parse order. Dotfiles are skipped.
func discover(dir string, keep func(name string) bool) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if keep(name) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
