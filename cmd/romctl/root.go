package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshuapare/romkit/config"
	"github.com/joshuapare/romkit/internal/logger"
	"github.com/joshuapare/romkit/payload"
	"github.com/joshuapare/romkit/project"
)

// defaultConfig is used when no --config file is given. Its empty layout
// makes imports derive the layout from the iNES header.
const defaultConfig = "nes"

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	configFile string
	logLevel   string
	logFile    string
	logJSON    bool
)

var (
	appLogger = logger.Discard()
	closeLog  = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "romctl",
	Short: "Edit ROM images through a replayable commit log",
	Long: `romctl manages ROM editing projects. A project is an ordered list of
commits, starting from an imported image, where every commit is a structured
edit that is re-applied whenever an earlier commit changes.

Project files store the edits only; images are regenerated by replaying the
log from the root import.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		StringVarP(&configFile, "config", "c", "", "ROM configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append log records to this file")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write log records as JSON")
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func setupLogger() error {
	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	if verbose && level > slog.LevelInfo {
		level = slog.LevelInfo
	}
	l, closeFn, err := logger.New(logger.Options{Level: level, JSON: logJSON, File: logFile})
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	appLogger, closeLog = l, closeFn
	return nil
}

// projectOptions builds the registries shared by every command. The returned
// name is the configuration new projects are created with.
func projectOptions() (project.Options, string, error) {
	configs, err := config.NewRegistry(config.Config{Name: defaultConfig})
	if err != nil {
		return project.Options{}, "", err
	}
	name := defaultConfig
	if configFile != "" {
		c, err := configs.LoadFile(configFile)
		if err != nil {
			return project.Options{}, "", fmt.Errorf("failed to load config: %w", err)
		}
		name = c.Name
		printVerbose("Loaded config %q from %s\n", name, configFile)
	}
	payloads, err := payload.NewRegistry()
	if err != nil {
		return project.Options{}, "", err
	}
	return project.Options{Configs: configs, Payloads: payloads, Logger: appLogger}, name, nil
}

// loadProject reads a project file and replays it.
func loadProject(ctx context.Context, path string) (*project.Project, error) {
	opts, _, err := projectOptions()
	if err != nil {
		return nil, err
	}
	printVerbose("Loading project: %s\n", path)
	p, err := project.LoadFile(ctx, path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return p, nil
}

// parseIndex parses a commit index argument. Negative values count from the
// end of the log.
func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid commit index %q", s)
	}
	return i, nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// formatSize renders a byte count the way info prints file sizes.
func formatSize(size int) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d bytes", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	}
}
