// Package cli implements the cobra-based command line of ipsniffer.
//
// The root command is the scan itself: `ipsniffer [flags] <ip>`. This file
// defines the command, its flags, and the translation of errors into exit
// codes. The scan workflow lives in scan.go and result rendering in
// output.go.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/ipsniffer/internal/config"
	"github.com/shinji-kodama/ipsniffer/internal/model"
)

// Version, Commit and Date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// outputFormat is the effective output format of the running command. It
// starts from the --output flag and is replaced by the merged setting once
// the config file has been read, so that errors are rendered in the same
// format as results.
var outputFormat = "text"

// scanFlags holds the flag values of the root command.
// These are bound to cobra flags in NewRootCommand.
type scanFlags struct {
	threads    uint16        // -j/--threads: number of concurrent workers
	timeout    time.Duration // -t/--timeout: per-connect timeout, 0 = OS default
	container  string        // -c/--container: scan a Docker container instead of an IP
	configPath string        // --config: explicit config file path
	output     string        // -o/--output: text, json or yaml
	noProgress bool          // --no-progress: suppress progress ticks
	verbose    bool          // -v/--verbose: debug logging on stderr
}

// NewRootCommand creates and configures the root cobra command.
func NewRootCommand() *cobra.Command {
	flags := &scanFlags{}

	rootCmd := &cobra.Command{
		Use:   "ipsniffer [flags] <ip>",
		Short: "Concurrent TCP port scanner",
		Long: `ipsniffer checks every TCP port (1-65535) of a target address and
reports the ones that accept a connection.

The port space is split across a pool of concurrent workers; results are
collected and printed in ascending order once the scan is complete.`,
		Example: `  ipsniffer 192.168.1.1
  ipsniffer -j 100 192.168.1.1
  ipsniffer -j 200 --timeout 500ms -o json ::1
  ipsniffer --container postgres`,

		Args: validateArgs,

		// Errors are formatted by Execute, in text or JSON.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, flags, args)
		},
	}

	f := rootCmd.Flags()
	f.Uint16VarP(&flags.threads, config.FlagThreads, "j", model.DefaultThreads, "Number of concurrent workers")
	f.DurationVarP(&flags.timeout, config.FlagTimeout, "t", 0, "Per-connect timeout (0 uses the OS default)")
	f.StringVarP(&flags.container, "container", "c", "", "Scan the IP address of a running Docker container")
	f.StringVar(&flags.configPath, "config", "", "Config file (default: .ipsniffer.{jsonc,json,yaml,yml} in the working directory)")
	f.StringVarP(&flags.output, config.FlagOutput, "o", "text", "Output format: text, json, yaml")
	f.BoolVar(&flags.noProgress, config.FlagNoProgress, false, "Do not print a progress tick per open port")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging on stderr")

	// Unparseable flag values (e.g. "-j many") are argument errors.
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return model.WrapCLIError(model.ExitInvalidArgs, "problem parsing arguments", err)
	})

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		outputFormat = flags.output
		logger = newLogger(cmd.ErrOrStderr(), flags.verbose)
	}

	return rootCmd
}

// validateArgs accepts at most one positional argument: the target IP.
// Whether a target is present at all is checked in runScan, because
// --container can stand in for it.
func validateArgs(_ *cobra.Command, args []string) error {
	if len(args) > 1 {
		return model.NewCLIError(model.ExitInvalidArgs,
			fmt.Sprintf("too many arguments: expected a single target address, got %d", len(args)))
	}
	return nil
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// SIGINT and SIGTERM cancel the command's context, which stops an in-flight
// scan. CLIError types carry their own exit codes; a cancelled scan exits
// with ExitInterrupted; other errors default to exit code 1.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		printError(os.Stderr, err)
		os.Exit(int(exitCode(err)))
	}
}

// exitCode maps an error returned by the root command to a process exit code.
func exitCode(err error) model.ExitCode {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return model.ExitInterrupted
	}
	return model.ExitGeneralError
}

// printError writes err to w in the appropriate format (JSON or text)
// based on the effective output format.
func printError(w io.Writer, err error) {
	message := err.Error()
	var detail string
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		message = cliErr.Message
		if cliErr.Err != nil {
			detail = cliErr.Err.Error()
		}
	}

	if outputFormat == "json" {
		errObj := map[string]any{"message": message}
		if detail != "" {
			errObj["detail"] = detail
		}
		// stderr is used even in JSON mode; stdout carries results only.
		data, _ := json.MarshalIndent(map[string]any{"error": errObj}, "", "  ")
		_, _ = fmt.Fprintln(w, string(data))
		return
	}

	if detail != "" {
		_, _ = fmt.Fprintf(w, "Error: %s: %s\n", message, detail)
	} else {
		_, _ = fmt.Fprintf(w, "Error: %s\n", message)
	}
}

// logger is the diagnostic logger of the running command. It discards
// everything until PersistentPreRun replaces it.
var logger = zerolog.Nop()

// newLogger builds the stderr console logger. Warnings and errors are always
// shown; --verbose lowers the level to debug.
func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
