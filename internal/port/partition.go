package port

import (
	"iter"

	"github.com/shinji-kodama/ipsniffer/internal/model"
)

// Partition returns the ports assigned to one worker.
//
// Worker workerIndex owns every port congruent to workerIndex+1 modulo
// workerCount within [1, model.MaxPort], yielded in ascending order. Over all
// workerIndex in [0, workerCount) the partitions cover the port space exactly
// once: no port is probed twice and none is skipped.
//
// Port 0 is never yielded. An empty sequence is returned when workerCount is
// zero or workerIndex is out of range.
func Partition(workerIndex, workerCount uint16) iter.Seq[uint16] {
	return func(yield func(uint16) bool) {
		if workerCount == 0 || workerIndex >= workerCount {
			return
		}

		// workerIndex < workerCount <= MaxPort, so the start never overflows.
		port := workerIndex + 1
		for {
			if !yield(port) {
				return
			}
			// Stop when the next candidate would pass MaxPort. Testing the
			// remaining headroom instead of port+workerCount keeps the
			// arithmetic inside uint16.
			if model.MaxPort-port < workerCount {
				return
			}
			port += workerCount
		}
	}
}

// PartitionSize returns how many ports Partition(workerIndex, workerCount)
// yields, without iterating.
func PartitionSize(workerIndex, workerCount uint16) int {
	if workerCount == 0 || workerIndex >= workerCount {
		return 0
	}
	first := int(workerIndex) + 1
	return (int(model.MaxPort)-first)/int(workerCount) + 1
}
