// scan.go implements the scan workflow of the root command.
//
// Orchestration steps:
//  1. Load the optional config file and merge it with the flags
//  2. Resolve the target (positional IP or --container)
//  3. Build and validate the ScanConfig
//  4. Run the scan, ticking progress per open port
//  5. Render the report in the selected format
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/ipsniffer/internal/config"
	"github.com/shinji-kodama/ipsniffer/internal/docker"
	"github.com/shinji-kodama/ipsniffer/internal/model"
	"github.com/shinji-kodama/ipsniffer/internal/port"
)

// newProber builds the prober used by a scan. Tests replace it to scan a
// simulated target.
var newProber = func(timeout time.Duration) port.Prober {
	return port.NewTCPProber(timeout)
}

// resolveContainer turns a --container value into an address. Tests replace
// it to avoid needing a Docker daemon.
var resolveContainer = func(ctx context.Context, nameOrID string) (string, error) {
	cli, err := docker.NewClient()
	if err != nil {
		return "", err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return "", err
	}
	logger.Debug().Msg("connected to Docker daemon")

	addr, err := cli.ResolveContainerIP(ctx, nameOrID)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

// runScan is the main logic function of the root command.
func runScan(cmd *cobra.Command, flags *scanFlags, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Step 1: Merge config file and flags.
	settings, err := loadSettings(cmd, flags)
	if err != nil {
		return err
	}
	outputFormat = settings.Output

	// Step 2: Resolve the target address.
	target, err := resolveTarget(ctx, flags, args)
	if err != nil {
		return err
	}

	// Step 3: Validate the scan inputs.
	cfg, err := model.NewScanConfig(target, settings.Threads, settings.Timeout)
	if err != nil {
		return err
	}
	logger.Debug().
		Str("target", cfg.Target.String()).
		Uint16("workers", cfg.Workers).
		Dur("timeout", cfg.Timeout).
		Msg("starting scan")

	// Step 4: Run the scan. Progress ticks only make sense for the text
	// format; structured output must stay parseable.
	out := cmd.OutOrStdout()
	opts := []port.Option{
		port.WithProber(newProber(cfg.Timeout)),
		port.WithLogger(logger),
	}
	var ticker *progressTicker
	if settings.Output == "text" && settings.Progress {
		ticker = &progressTicker{w: out}
		opts = append(opts, port.WithProgress(ticker.tick))
	}

	started := time.Now()
	ports, err := port.NewScanner(opts...).Scan(ctx, cfg)
	ticker.finish()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return model.WrapCLIError(model.ExitInterrupted, "scan interrupted", err)
		}
		return err
	}
	logger.Debug().Str("ports", FormatPorts(ports)).Msg("open ports")

	// Step 5: Render the report.
	report := model.ScanReport{
		ID:        uuid.NewString(),
		Target:    cfg.Target.String(),
		Container: flags.container,
		Workers:   cfg.Workers,
		OpenPorts: ports,
		StartedAt: started.UTC(),
		Duration:  time.Since(started).Round(time.Millisecond).String(),
	}
	return printReport(out, report, settings.Output)
}

// loadSettings reads the config file (explicit or discovered in the working
// directory) and merges it with the command's flags.
func loadSettings(cmd *cobra.Command, flags *scanFlags) (config.Settings, error) {
	path := flags.configPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Settings{}, model.WrapCLIError(model.ExitConfigError,
				"failed to determine working directory", err)
		}
		if path, err = config.Find(wd); err != nil {
			return config.Settings{}, err
		}
	}

	var file *config.File
	if path != "" {
		f, err := config.Load(path)
		if err != nil {
			return config.Settings{}, err
		}
		logger.Debug().Str("path", path).Msg("loaded config file")
		file = f
	}

	return config.Resolve(file, cmd.Flags())
}

// resolveTarget returns the address to scan from either the positional
// argument or --container. Exactly one of the two must be given.
func resolveTarget(ctx context.Context, flags *scanFlags, args []string) (string, error) {
	switch {
	case flags.container != "" && len(args) > 0:
		return "", model.NewCLIError(model.ExitInvalidArgs,
			"a target address and --container are mutually exclusive")
	case flags.container != "":
		addr, err := resolveContainer(ctx, flags.container)
		if err != nil {
			return "", err
		}
		logger.Debug().Str("container", flags.container).Str("addr", addr).Msg("resolved container")
		return addr, nil
	case len(args) == 0:
		return "", model.NewCLIError(model.ExitInvalidArgs,
			"not enough arguments: a target IP address (or --container) is required")
	default:
		return args[0], nil
	}
}

// progressTicker writes one '.' per open port while a scan is running.
// tick is called from worker goroutines.
type progressTicker struct {
	mu    sync.Mutex
	w     io.Writer
	ticks int
}

func (p *progressTicker) tick(uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks++
	_, _ = fmt.Fprint(p.w, ".")
}

// finish ends the progress line so the results start on a fresh line.
// It is a no-op on a nil ticker or when nothing was ticked.
func (p *progressTicker) finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticks > 0 {
		_, _ = fmt.Fprintln(p.w)
	}
}
