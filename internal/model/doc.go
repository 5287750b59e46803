// Package model defines the domain types and value objects for the
// ipsniffer CLI.
//
// This package contains pure data structures with no external dependencies.
// ScanConfig is the validated, immutable input of a scan; ScanReport is its
// output together with the metadata printed by the structured output formats.
// Neither is persisted: a scan's state lives only for the duration of the
// process.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
