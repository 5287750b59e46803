// Package main is the entry point for the ipsniffer CLI.
//
// This binary scans every TCP port of a target address with a pool of
// concurrent workers. It delegates all functionality to the internal/cli
// package, which defines the cobra command.
//
// Build-time variables (version, commit, date) are injected via ldflags.
// During development, they default to "dev", "none", and "unknown".
package main

import (
	"github.com/shinji-kodama/ipsniffer/internal/cli"
)

// version, commit, and date are set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	// Execute handles error formatting, signal cancellation and exit codes.
	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
