// Package port implements the concurrent TCP connect scan of the
// ipsniffer CLI.
//
// The port space [1, 65535] is split into disjoint, stride-based partitions:
//
//	worker i probes  i+1, i+1+W, i+1+2W, ...  (W = worker count)
//
// Each worker probes its partition with a TCP connect and sends the ports
// that accepted a connection on a shared channel. Collect drains that
// channel until every worker has finished, then sorts the result once.
// Scanner.Scan wires the two halves together.
package port
