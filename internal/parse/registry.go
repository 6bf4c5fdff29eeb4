package parse

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rastipwnerr/investigator/internal/artifact"
)

// registryTimeFields are the normalized RECmd columns that may carry the
// event time.
var registryTimeFields = []string{
	"lastwritetimestamp",
}

// registryParser runs RECmd against each hive. When a batch definition file
// is configured and present it is passed with --bn for curated key coverage;
// otherwise, or when the batch run fails, the hive is parsed in plain mode.
type registryParser struct {
	bin    string
	batch  string
	runner *Runner
}

func (p *registryParser) Type() artifact.Type { return artifact.Registry }

func (p *registryParser) Inputs(dir string) ([]string, error) {
	return discover(dir, func(name string) bool {
		lower := strings.ToLower(name)
		// Transaction logs ride along with their hive, the tool replays them.
		if strings.HasSuffix(lower, ".log1") || strings.HasSuffix(lower, ".log2") || strings.HasSuffix(lower, ".log") {
			return false
		}
		return artifact.Classify(name) == artifact.Registry
	})
}

func (p *registryParser) Parse(ctx context.Context, input string) ([]Record, error) {
	tmp, err := tempDir("investigator-reg-")
	if err != nil {
		return nil, &ParserError{Type: artifact.Registry, Tool: "RECmd", Err: err}
	}
	defer removeAllRetry(tmp)

	ran := false
	if p.batch != "" {
		if _, statErr := os.Stat(p.batch); statErr == nil {
			if _, err := p.runner.Run(ctx, p.bin, "-f", input, "--csv", tmp, "--bn", p.batch); err == nil {
				ran = true
			}
		}
	}
	if !ran {
		if _, err := p.runner.Run(ctx, p.bin, "-f", input, "--csv", tmp); err != nil {
			return nil, &ParserError{Type: artifact.Registry, Tool: "RECmd", Err: err}
		}
	}

	records, err := collectCSVRecords(tmp, registryTimeFields, false)
	if err != nil {
		return nil, &ParserError{Type: artifact.Registry, Tool: "RECmd", Err: err}
	}
	hive := hiveType(input)
	for i := range records {
		records[i].Fields["hive_type"] = hive
	}
	return records, nil
}

// hiveType labels the hive class from its file name.
func hiveType(path string) string {
	base := strings.ToLower(filepath.Base(path))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	switch {
	case strings.Contains(base, "ntuser"):
		return "ntuser"
	case strings.Contains(base, "usrclass"):
		return "usrclass"
	case base == "system", base == "software", base == "sam", base == "security", base == "default":
		return base
	}
	return "unknown"
}
