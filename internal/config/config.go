// Package config loads the tool configuration from YAML and the environment.
// The resulting Config value is threaded explicitly into every component
// constructor; nothing reads backend hosts or credentials from globals.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rastipwnerr/investigator/internal/artifact"
)

// Elastic holds the document-index backend endpoints.
type Elastic struct {
	Host       string `yaml:"host"`
	KibanaHost string `yaml:"kibana_host"`
}

// Timesketch holds the timeline-service endpoint and credentials.
type Timesketch struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Tools lists candidate paths per external binary, tried in order before
// falling back to PATH lookup.
type Tools struct {
	EvtxDump      []string `yaml:"evtx_dump"`
	MFTECmd       []string `yaml:"mftecmd"`
	AmcacheParser []string `yaml:"amcache_parser"`
	LECmd         []string `yaml:"lecmd"`
	RECmd         []string `yaml:"recmd"`
	RegistryBatch string   `yaml:"recmd_batch"`
	Log2timeline  []string `yaml:"log2timeline"`
	Psort         []string `yaml:"psort"`
}

// Config is the full tool configuration.
type Config struct {
	// BaseDir anchors the case directory tree. The six artifact roots and
	// the two JSON output roots live directly under it.
	BaseDir string `yaml:"base_dir"`

	Elastic    Elastic    `yaml:"elastic"`
	Timesketch Timesketch `yaml:"timesketch"`
	Tools      Tools      `yaml:"tools"`

	// ParserTimeout bounds each external parser invocation.
	ParserTimeout time.Duration `yaml:"parser_timeout"`
	// BulkBatchSize is the number of documents per bulk request.
	BulkBatchSize int `yaml:"bulk_batch_size"`
	// RunLogPath is the SQLite run-manifest location.
	RunLogPath string `yaml:"runlog_path"`
}

// Default returns the built-in configuration, matching the layout contract:
// evtx/ mft/ amcache/ lnk/ registry/ other/ jsons_elk/ jsons_timesketch/
// under the current directory.
func Default() *Config {
	return &Config{
		BaseDir: ".",
		Elastic: Elastic{
			Host:       "http://localhost:9200",
			KibanaHost: "http://localhost:5601",
		},
		Timesketch: Timesketch{
			Host:     "http://localhost:80",
			Username: "admin",
			Password: "admin",
		},
		Tools: Tools{
			EvtxDump:      []string{"./evtx_dump", "/usr/local/bin/evtx_dump", "/usr/bin/evtx_dump"},
			MFTECmd:       []string{"./MFTECmd", "./MFTECmd.exe", "/usr/local/bin/MFTECmd", "/usr/bin/MFTECmd"},
			AmcacheParser: []string{"./AmcacheParser", "./AmcacheParser.exe", "/usr/local/bin/AmcacheParser", "/usr/bin/AmcacheParser"},
			LECmd:         []string{"./LECmd", "./LECmd.exe", "/usr/local/bin/LECmd", "/usr/bin/LECmd"},
			RECmd:         []string{"./RECmd", "./RECmd.exe", "/usr/local/bin/RECmd", "/usr/bin/RECmd"},
			Log2timeline:  []string{"/usr/local/bin/log2timeline.py", "/usr/bin/log2timeline.py"},
			Psort:         []string{"/usr/local/bin/psort.py", "/usr/bin/psort.py"},
		},
		ParserTimeout: 5 * time.Minute,
		BulkBatchSize: 500,
		RunLogPath:    filepath.Join(".investigator", "runs.db"),
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error when the path is
// the default location; an explicitly requested file must exist.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// defaults only
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if cfg.ParserTimeout <= 0 {
		cfg.ParserTimeout = 5 * time.Minute
	}
	if cfg.BulkBatchSize <= 0 {
		cfg.BulkBatchSize = 500
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("INVESTIGATOR_ES_HOST"); v != "" {
		c.Elastic.Host = v
	}
	if v := os.Getenv("INVESTIGATOR_KIBANA_HOST"); v != "" {
		c.Elastic.KibanaHost = v
	}
	if v := os.Getenv("TIMESKETCH_HOST"); v != "" {
		c.Timesketch.Host = v
	}
	if v := os.Getenv("TIMESKETCH_USERNAME"); v != "" {
		c.Timesketch.Username = v
	}
	if v := os.Getenv("TIMESKETCH_PASSWORD"); v != "" {
		c.Timesketch.Password = v
	}
}

// ArtifactRoot returns the root directory for one artifact type.
func (c *Config) ArtifactRoot(t artifact.Type) string {
	return filepath.Join(c.BaseDir, t.DirName())
}

// ArtifactRoots returns all six artifact roots keyed by type.
func (c *Config) ArtifactRoots() map[artifact.Type]string {
	roots := make(map[artifact.Type]string, len(artifact.All()))
	for _, t := range artifact.All() {
		roots[t] = c.ArtifactRoot(t)
	}
	return roots
}

// JSONRoot returns the output root for a platform ("elk" or "timesketch").
func (c *Config) JSONRoot(platform string) string {
	if platform == "timesketch" {
		return filepath.Join(c.BaseDir, "jsons_timesketch")
	}
	return filepath.Join(c.BaseDir, "jsons_elk")
}

// JSONDir returns the per-case output directory for a platform.
func (c *Config) JSONDir(platform, caseName string) string {
	return filepath.Join(c.JSONRoot(platform), caseName)
}

// CandidatePaths returns the configured candidate list for a tool name.
func (t Tools) CandidatePaths(tool string) []string {
	switch tool {
	case "evtx_dump":
		return t.EvtxDump
	case "MFTECmd":
		return t.MFTECmd
	case "AmcacheParser":
		return t.AmcacheParser
	case "LECmd":
		return t.LECmd
	case "RECmd":
		return t.RECmd
	case "log2timeline.py":
		return t.Log2timeline
	case "psort.py":
		return t.Psort
	}
	return nil
}
