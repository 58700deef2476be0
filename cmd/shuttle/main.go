package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bamsammich/shuttle/internal/config"
	"github.com/bamsammich/shuttle/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// app holds the persistent flags and everything set up from them before a
// subcommand runs.
type app struct {
	verbose     bool
	quiet       bool
	noProgress  bool
	forceFeed   bool
	forceRate   bool
	noJournal   bool
	logFile     string
	configPath  string
	journalPath string

	cfg     config.Config
	logSink io.Closer
	fileLog *slog.Logger
	stdout  io.Writer
	stderr  io.Writer
}

func newRootCmd(a *app) *cobra.Command {
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:   "shuttle",
		Short: "Copy, move and delete file trees with progress, conflict checks and a crash journal",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				fmt.Fprintf(a.stdout, "shuttle %s\n", version)
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "suppress all output except errors")
	pf.BoolVar(&a.noProgress, "no-progress", false, "disable progress display")
	pf.BoolVar(&a.forceFeed, "feed", false, "force feed mode (one line per file)")
	pf.BoolVar(&a.forceRate, "rate", false, "force rate mode (sparkline + throughput)")
	pf.StringVar(&a.logFile, "log", "", "write structured JSON log to FILE")
	pf.StringVar(&a.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/shuttle/config.toml)")
	pf.StringVar(&a.journalPath, "journal", "", "operation journal database (default: $XDG_STATE_HOME/shuttle/journal.db)")
	pf.BoolVar(&a.noJournal, "no-journal", false, "do not record operations in the journal")

	rootCmd.AddCommand(
		newCopyCmd(a),
		newMoveCmd(a),
		newRemoveCmd(a),
		newJournalCmd(a),
		newRecoverCmd(a),
		newDocsCmd(),
	)
	return rootCmd
}

func run() int {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	return a.execute(os.Args[1:])
}

// execute runs the command line args and returns the process exit code.
func (a *app) execute(args []string) int {
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	err := rootCmd.Execute()
	a.teardown()
	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

// setup loads the config file and installs the default logger.
func (a *app) setup(cmd *cobra.Command) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	ui.ApplyTheme(a.cfg.Theme)

	logLevel := slog.LevelInfo
	switch {
	case a.verbose:
		logLevel = slog.LevelDebug
	case a.quiet:
		logLevel = slog.LevelWarn
	case a.cfg.Log.Level != nil:
		logLevel, _ = config.ParseLevel(*a.cfg.Log.Level) //nolint:errcheck // validated on load
	}
	textHandler := slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: logLevel})
	var logHandler slog.Handler = textHandler

	logFile := a.logFile
	if !cmd.Flags().Changed("log") && a.cfg.Log.File != nil {
		logFile = *a.cfg.Log.File
	}
	if logFile != "" {
		lf, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.logSink = lf
		a.logFile = logFile
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
		a.fileLog = slog.New(jsonHandler)
	}
	slog.SetDefault(slog.New(logHandler))
	return nil
}

// engineLogger is the logger handed to the engine. Its per-node records
// go to the log file only, unless --verbose asks for them on the terminal;
// warnings reach the terminal through the presenter either way.
func (a *app) engineLogger() *slog.Logger {
	if a.verbose {
		return slog.Default()
	}
	return a.fileLog
}

func (a *app) teardown() {
	if a.logSink != nil {
		a.logSink.Close()
		a.logSink = nil
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// exitWith maps a finished operation to the process exit code:
// 0 success, 1 partial failure or conflict, 2 total failure.
func exitWith(code int) error {
	if code == 0 {
		return nil
	}
	return &exitError{code: code}
}
