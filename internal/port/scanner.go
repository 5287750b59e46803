package port

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/shinji-kodama/ipsniffer/internal/model"
)

// Scanner runs a full-range TCP connect scan against a single target.
//
// It fans the port space out to cfg.Workers goroutines (see Partition) and
// fans their findings back in through one channel drained by Collect. A
// Scanner holds no per-scan state and may run several scans, sequentially or
// concurrently.
type Scanner struct {
	prober Prober
	onOpen func(port uint16)
	logger zerolog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithProber replaces the default TCP connect prober. Tests use this to
// simulate targets without touching the network.
func WithProber(p Prober) Option {
	return func(s *Scanner) { s.prober = p }
}

// WithProgress registers a hook that is called once for every open port, as
// soon as its worker has handed it to the aggregator. The hook runs on worker
// goroutines and must be safe for concurrent use.
func WithProgress(fn func(port uint16)) Option {
	return func(s *Scanner) { s.onOpen = fn }
}

// WithLogger sets the logger used for worker lifecycle diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// NewScanner creates a Scanner. Without options it probes with a TCPProber
// using the OS connect timeout and logs nothing.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		prober: NewTCPProber(0),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan probes every TCP port of cfg.Target and returns the open ones in
// ascending order.
//
// Scan blocks until every worker has walked its partition. Its latency is
// bounded by the slowest worker, which is in turn bounded by the connect
// timeouts it runs into. The result is never nil; finding no open port is not
// an error.
//
// If ctx is cancelled the workers stop at their next loop iteration and Scan
// returns ctx.Err() with no partial results.
func (s *Scanner) Scan(ctx context.Context, cfg model.ScanConfig) ([]uint16, error) {
	start := time.Now()

	// One buffer slot per worker lets every worker hand over a port without
	// waiting on the aggregator in the common case.
	results := make(chan uint16, cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := range cfg.Workers {
		g.Go(func() error {
			return s.runWorker(gctx, i, cfg, results)
		})
	}

	// The channel is closed only after the last worker returns, so Collect
	// sees closure exactly when every sender is done. With zero workers
	// Wait returns at once and the result is empty.
	waitErr := make(chan error, 1)
	go func() {
		waitErr <- g.Wait()
		close(results)
	}()

	ports := Collect(results)
	if err := <-waitErr; err != nil {
		s.logger.Debug().Err(err).Dur("elapsed", time.Since(start)).Msg("scan aborted")
		return nil, err
	}

	s.logger.Debug().
		Str("target", cfg.Target.String()).
		Int("open", len(ports)).
		Dur("elapsed", time.Since(start)).
		Msg("scan complete")
	return ports, nil
}
