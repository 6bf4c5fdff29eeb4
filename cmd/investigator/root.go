// investigator is the forensic evidence CLI: organize raw artifacts into
// cases, parse and ingest them into ELK or Timesketch, list cases, and clean
// up finished ones.
//
// Usage:
//
//	investigator --organize --source-dir ./dump --case-name case1 [--move]
//	investigator --case-name case1 --platform elk [--evtx] [--mft] [--all]
//	investigator --case-name case1 --platform timesketch --sketch-name intrusion
//	investigator --list-cases
//	investigator --clean-case case1 [--dry-run]
//	investigator --clean-all-indices [--dry-run] [--yes] [--clean-logs]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rastipwnerr/investigator/internal/config"
	"github.com/rastipwnerr/investigator/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var flags cliFlags

var rootCmd = &cobra.Command{
	Use:   "investigator",
	Short: "Organize forensic evidence and ingest it into ELK or Timesketch",
	Long: "Investigator sorts raw Windows forensic artifacts into per-case directories,\n" +
		"runs the matching external parsers, and ships their output as searchable\n" +
		"documents (Elasticsearch/Kibana) or timeline events (Timesketch).",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	RunE: run,
}

func init() {
	f := rootCmd.Flags()

	f.StringVar(&flags.configPath, "config", "investigator.yaml", "Config file path")
	f.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&flags.logFormat, "log-format", "text", "Log format (text, json)")

	f.BoolVar(&flags.organize, "organize", false, "Sort files from --source-dir into per-case artifact directories")
	f.StringVar(&flags.sourceDir, "source-dir", "", "Directory of raw evidence files to organize")
	f.BoolVar(&flags.move, "move", false, "Move files instead of copying")

	f.StringVar(&flags.caseName, "case-name", "", "Case name (path segment and index-name prefix)")
	f.StringVar(&flags.platform, "platform", "", "Ingestion target: elk or timesketch")
	f.BoolVar(&flags.evtx, "evtx", false, "Process Windows event logs")
	f.BoolVar(&flags.mft, "mft", false, "Process $MFT files")
	f.BoolVar(&flags.amcache, "amcache", false, "Process Amcache hives")
	f.BoolVar(&flags.lnk, "lnk", false, "Process shortcut files")
	f.BoolVar(&flags.registry, "registry", false, "Process registry hives")
	f.BoolVar(&flags.plaso, "log2timeline", false, "Process the catch-all directory with Plaso")
	f.BoolVar(&flags.allTypes, "all", false, "Process every artifact type")
	f.StringVar(&flags.indexName, "index-name", "", "Override the per-type index name (elk only)")
	f.StringVar(&flags.sketchName, "sketch-name", "", "Timesketch sketch to import into")
	f.IntVar(&flags.parallel, "parallel", 1, "Process up to N artifact types concurrently")

	f.BoolVar(&flags.listCases, "list-cases", false, "List known cases with per-type file counts")

	f.BoolVar(&flags.clean, "clean", false, "With --platform elk: delete the indices and patterns for --case-name or --index-name")
	f.StringVar(&flags.cleanCase, "clean-case", "", "Delete a case's files on disk")
	f.StringVar(&flags.cleanCaseIndices, "clean-case-indices", "", "Delete a case's indices and index patterns")
	f.BoolVar(&flags.cleanAllIndices, "clean-all-indices", false, "Delete every non-system index")
	f.BoolVar(&flags.cleanLogs, "clean-logs", false, "Delete parser log files from the base directory")
	f.BoolVar(&flags.dryRun, "dry-run", false, "Report what a clean would remove without deleting")
	f.BoolVar(&flags.yes, "yes", false, "Skip the clean-all confirmation prompt")

	rootCmd.Version = version
}

func run(cmd *cobra.Command, _ []string) error {
	logging.Init(logging.ParseLevel(flags.logLevel), flags.logFormat)

	cfg, err := config.Load(flags.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}

	mode, err := selectMode(&flags)
	if err != nil {
		return err
	}

	a := &app{cfg: cfg, out: cmd.OutOrStdout(), in: cmd.InOrStdin()}
	switch mode {
	case modeOrganize:
		return a.runOrganize()
	case modeIngest:
		return a.runIngest(cmd.Context())
	case modeListCases:
		return a.runListCases()
	case modeClean:
		return a.runClean(cmd.Context())
	case modeCleanCase:
		return a.runCleanCase()
	case modeCleanCaseIndices:
		return a.runCleanCaseIndices(cmd.Context())
	case modeCleanAllIndices:
		return a.runCleanAllIndices(cmd.Context())
	case modeCleanLogs:
		return a.runCleanLogs()
	}
	return fmt.Errorf("no mode selected")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
