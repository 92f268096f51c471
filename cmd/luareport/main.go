// Package main implements the CLI driver for the luareport analyzer.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aloecraft-org/diluvium/internal/runner"
	"github.com/Aloecraft-org/diluvium/pkg/analysis"
)

// Config holds all command-line configuration options for luareport.
type Config struct {
	Chunks     []string // precompiled chunk files to analyze
	Verbose    bool     // enables detailed logging to stderr
	LogJSON    bool     // verbose logs as JSON instead of text
	Pretty     bool     // indented JSON output
	Jobs       int      // concurrent analyses (0 = NumCPU)
	OutputDir  string   // write one <chunk>.json per input instead of stdout
	ConfigFile string   // optional YAML config file
	Profile    bool     // enables CPU and memory profiling
}

const (
	exitUsage = 1 // bad invocation or unreadable configuration
	exitError = 2 // analysis or output failure
)

var (
	// Set via ldflags during build.
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var cfg Config

func main() {
	var rootCmd = &cobra.Command{
		Use:   "luareport [chunks...]",
		Short: "Static interface analysis of compiled Lua 5.4 bytecode",
		Long: `luareport inspects precompiled Lua 5.4 chunks (luac output) and emits a
structured interface report as JSON: per-function signatures, return-value
provenance, table size hints, closures, call sites, and top-level globals.

The analyzer never executes code; it reads the bytecode graph only.`,
		Example: `  luareport app.luac                  # Report to stdout
  luareport -p app.luac               # Pretty-printed JSON
  luareport -o reports/ *.luac        # One report file per chunk
  luareport --config luareport.yaml chunks/*.luac`,
		Args:               cobra.ArbitraryArgs,
		RunE:               runCommand,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		SilenceUsage:       true,
		SilenceErrors:      true,
		Version:            version,
	}

	// Set custom version template to include build info.
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"luareport version %s (lua %s)\n  commit: %s\n  built:  %s\n",
		version, analysis.LuaVersion, gitCommit, buildTime))

	// Define flags.
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&cfg.LogJSON, "log-json", false, "Emit verbose logs as JSON instead of text")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Pretty, "pretty", "p", false, "Indent JSON output")
	rootCmd.PersistentFlags().IntVarP(&cfg.Jobs, "jobs", "j", 0, "Concurrent analyses (0 = NumCPU)")
	rootCmd.PersistentFlags().StringVarP(&cfg.OutputDir, "output", "o", "", "Directory for per-chunk report files (default: stdout)")
	rootCmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&cfg.Profile, "profile", false, "Enable CPU and memory profiling (writes cpu.prof and mem.prof to current directory)")

	if err := rootCmd.Execute(); err != nil {
		_ = teardown(nil, nil)
		if err.Error() != "" {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		var cErr codedError
		if errors.As(err, &cErr) {
			os.Exit(cErr.code)
		}
		os.Exit(exitError)
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errWithCode(errors.New("no chunk files given (see luareport --help)"), exitUsage)
	}
	cfg.Chunks = args

	if cfg.ConfigFile != "" {
		fileCfg, err := runner.LoadConfig(cfg.ConfigFile)
		if err != nil {
			return errWithCode(err, exitUsage)
		}
		applyConfigDefaults(cmd, fileCfg)
	}

	slog.Info("starting bytecode analysis", "chunks", cfg.Chunks, "jobs", cfg.Jobs)

	results, err := runner.Run(cmd.Context(), cfg.Chunks, runner.Options{
		Jobs:   cfg.Jobs,
		Pretty: cfg.Pretty,
	})
	if err != nil {
		return errWithCode(fmt.Errorf("analyze: %w", err), exitError)
	}

	if err := writeResults(results); err != nil {
		return errWithCode(err, exitError)
	}
	return nil
}

// applyConfigDefaults fills settings from the YAML config for every flag
// the user left at its default.
func applyConfigDefaults(cmd *cobra.Command, fileCfg *runner.Config) {
	if !cmd.Flags().Changed("jobs") {
		cfg.Jobs = fileCfg.Jobs
	}
	if !cmd.Flags().Changed("pretty") {
		cfg.Pretty = fileCfg.Pretty
	}
	if !cmd.Flags().Changed("output") {
		cfg.OutputDir = fileCfg.OutputDir
	}
}

func writeResults(results []runner.Result) error {
	if cfg.OutputDir == "" {
		for _, res := range results {
			fmt.Println(string(res.JSON))
		}
		return nil
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	for _, res := range results {
		name := strings.TrimSuffix(filepath.Base(res.Path), filepath.Ext(res.Path)) + ".json"
		out := filepath.Join(cfg.OutputDir, name)
		if err := os.WriteFile(out, append(res.JSON, '\n'), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		slog.Info("report written", "chunk", res.Path, "report", out)
	}
	return nil
}

var cpuProfile *os.File

func setup(_ *cobra.Command, _ []string) error {
	// Disable logger unless verbose flag is set.
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if cfg.Verbose {
		opts := &slog.HandlerOptions{Level: slog.LevelDebug}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if cfg.LogJSON {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		slog.SetDefault(slog.New(handler))
	}

	if !cfg.Profile {
		return nil
	}

	// Start CPU profiling.
	var err error
	cpuProfile, err = os.Create("cpu.prof")
	if err != nil {
		return fmt.Errorf("creating cpu.prof: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuProfile); err != nil {
		_ = cpuProfile.Close()
		return fmt.Errorf("starting CPU profile: %w", err)
	}
	slog.Info("cpu profiling started", "file", "cpu.prof")
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if !cfg.Profile || cpuProfile == nil {
		return nil
	}

	// Stop CPU profiling and close file.
	pprof.StopCPUProfile()
	defer cpuProfile.Close()
	slog.Info("cpu profiling stopped", "file", "cpu.prof")

	// Write memory profile.
	memFile, err := os.Create("mem.prof")
	if err != nil {
		return fmt.Errorf("creating mem.prof: %w", err)
	}
	defer memFile.Close()
	runtime.GC() // Get up-to-date statistics
	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	slog.Info("memory profiling completed", "file", "mem.prof")
	return nil
}

func errWithCode(err error, code int) error {
	return codedError{err: err, code: code}
}

// codedError carries the process exit status alongside the error; main
// extracts it with errors.As.
type codedError struct {
	err  error
	code int
}

func (e codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}
