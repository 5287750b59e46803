package port

import "slices"

// Collect drains results until the channel is closed and returns every
// received port in ascending order.
//
// Collect blocks the calling goroutine until all senders are done and the
// channel has been closed; it never polls or times out on its own. Because
// each port belongs to exactly one worker's partition, the result holds no
// duplicates.
//
// The returned slice is never nil. If the channel is closed without any
// sends (no open ports, or zero workers) the result is empty.
func Collect(results <-chan uint16) []uint16 {
	ports := make([]uint16, 0)
	for p := range results {
		ports = append(ports, p)
	}

	// Arrival order depends on network latency across workers, so a single
	// sort at the end is what establishes the final order.
	slices.Sort(ports)
	return ports
}
