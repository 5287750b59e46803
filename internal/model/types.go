package model

import (
	"fmt"
	"net/netip"
	"time"
)

// MaxPort is the highest TCP port number. It is a protocol constant, not a
// tunable: the port space scanned is always [1, MaxPort].
const MaxPort uint16 = 65535

// DefaultThreads is the worker count used when none is given on the
// command line or in a config file.
const DefaultThreads uint16 = 4

// ScanConfig is the validated input of a scan.
//
// A ScanConfig is built once by NewScanConfig and is shared read-only by
// every worker for the lifetime of the scan, so it is always passed by value.
type ScanConfig struct {
	// Target is the address every connect attempt is made against.
	// IPv4 and IPv6 addresses are both accepted. An IPv6 zone is kept so
	// link-local targets can be dialed.
	Target netip.Addr

	// Workers is the number of concurrent workers. Each worker owns a
	// disjoint slice of the port space (see port.Partition). Always >= 1.
	Workers uint16

	// Timeout bounds a single connect attempt. Zero means the operating
	// system's default TCP connect timeout applies.
	Timeout time.Duration
}

// NewScanConfig parses and validates the raw scan inputs.
//
// Returns a CLIError with ExitInvalidArgs if the target is not a valid IPv4
// or IPv6 address, if workers is zero, or if the timeout is negative.
func NewScanConfig(target string, workers uint16, timeout time.Duration) (ScanConfig, error) {
	addr, err := netip.ParseAddr(target)
	if err != nil {
		return ScanConfig{}, WrapCLIError(ExitInvalidArgs,
			fmt.Sprintf("not a valid IP address %q; must be IPv4 or IPv6", target), err)
	}
	if workers == 0 {
		return ScanConfig{}, NewCLIError(ExitInvalidArgs, "thread count must be at least 1")
	}
	if timeout < 0 {
		return ScanConfig{}, NewCLIError(ExitInvalidArgs,
			fmt.Sprintf("timeout must not be negative, got %s", timeout))
	}

	return ScanConfig{
		Target:  addr,
		Workers: workers,
		Timeout: timeout,
	}, nil
}

// AddrPort returns the dial address for a single port of the target.
func (c ScanConfig) AddrPort(port uint16) netip.AddrPort {
	return netip.AddrPortFrom(c.Target, port)
}

// ScanReport is the outcome of a completed scan, used by the structured
// (json/yaml) output formats. The text format prints only OpenPorts.
type ScanReport struct {
	// ID uniquely identifies this scan run.
	ID string `json:"id" yaml:"id"`

	// Target is the scanned address in its canonical string form.
	Target string `json:"target" yaml:"target"`

	// Container is the Docker container name or ID the target was resolved
	// from. Empty when the target was given as an IP address.
	Container string `json:"container,omitempty" yaml:"container,omitempty"`

	// Workers is the number of workers the port space was partitioned into.
	Workers uint16 `json:"workers" yaml:"workers"`

	// OpenPorts lists every port that accepted a connection, strictly
	// ascending. It is never nil so that JSON output shows [] rather than null.
	OpenPorts []uint16 `json:"openPorts" yaml:"openPorts"`

	// StartedAt is the wall-clock time the scan started.
	StartedAt time.Time `json:"startedAt" yaml:"startedAt"`

	// Duration is the total scan time, formatted by time.Duration.String.
	Duration string `json:"duration" yaml:"duration"`
}

// ExitCode defines the process exit codes of the CLI.
// These codes allow scripts to programmatically determine the outcome of a
// scan without parsing its output.
type ExitCode int

const (
	// ExitSuccess indicates the scan completed. Finding no open ports is
	// still a success.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitInvalidArgs indicates a malformed argument: wrong argument count,
	// unparseable address or thread count.
	ExitInvalidArgs ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible
	// while resolving a --container target.
	ExitDockerNotRunning ExitCode = 3

	// ExitTargetNotFound indicates the --container target does not exist,
	// is not running, or has no IP address.
	ExitTargetNotFound ExitCode = 4

	// ExitConfigError indicates the config file could not be read or parsed.
	ExitConfigError ExitCode = 5

	// ExitInterrupted indicates the scan was cancelled by a signal before
	// it completed. No partial results are printed.
	ExitInterrupted ExitCode = 130
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
