package port

import (
	"context"

	"github.com/shinji-kodama/ipsniffer/internal/model"
)

// runWorker probes every port of the workerIndex-th partition of the port
// space and sends each open port on results.
//
// The loop checks ctx before every probe and selects on it while sending, so
// a cancelled scan (or an aggregator that stopped draining) ends the worker
// instead of blocking it forever. In that case runWorker returns ctx.Err();
// a worker that walked its whole partition returns nil.
func (s *Scanner) runWorker(ctx context.Context, workerIndex uint16, cfg model.ScanConfig, results chan<- uint16) error {
	log := s.logger.With().Uint16("worker", workerIndex).Logger()
	log.Debug().
		Uint16("first_port", workerIndex+1).
		Int("probes", PartitionSize(workerIndex, cfg.Workers)).
		Msg("worker started")

	found := 0
	for p := range Partition(workerIndex, cfg.Workers) {
		if err := ctx.Err(); err != nil {
			log.Debug().Uint16("port", p).Msg("worker cancelled")
			return err
		}

		if !s.prober.Probe(ctx, cfg.AddrPort(p)) {
			// Closed or filtered. Not an error, and never retried.
			continue
		}

		select {
		case results <- p:
		case <-ctx.Done():
			log.Debug().Uint16("port", p).Msg("worker cancelled while sending")
			return ctx.Err()
		}
		found++

		if s.onOpen != nil {
			s.onOpen(p)
		}
	}

	log.Debug().Int("open", found).Msg("worker finished")
	return nil
}
