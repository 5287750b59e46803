package port

import (
	"context"
	"net"
	"net/netip"
	"time"
)

// Prober decides whether a single TCP port accepts connections.
//
// Implementations must be safe for concurrent use: one Prober is shared by
// every worker of a scan.
type Prober interface {
	// Probe reports whether addr accepted a connection. A false result
	// covers every failure mode (refused, timed out, unreachable); none of
	// them is an error from the scanner's point of view.
	Probe(ctx context.Context, addr netip.AddrPort) bool
}

// TCPProber probes ports with a full TCP connect handshake.
//
// The connection is closed as soon as it is established; no data is
// exchanged with the target.
type TCPProber struct {
	// Timeout bounds a single connect attempt. Zero leaves the bound to the
	// operating system's TCP connect timeout.
	Timeout time.Duration
}

// NewTCPProber creates a TCPProber with the given per-connect timeout.
func NewTCPProber(timeout time.Duration) *TCPProber {
	return &TCPProber{Timeout: timeout}
}

// Probe attempts a TCP connect to addr and reports whether it succeeded.
//
// The context aborts an in-flight dial, so a cancelled scan does not wait
// for outstanding connect timeouts.
func (p *TCPProber) Probe(ctx context.Context, addr netip.AddrPort) bool {
	dialer := net.Dialer{Timeout: p.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// ProberFunc adapts an ordinary function to the Prober interface.
type ProberFunc func(ctx context.Context, addr netip.AddrPort) bool

// Probe calls f(ctx, addr).
func (f ProberFunc) Probe(ctx context.Context, addr netip.AddrPort) bool {
	return f(ctx, addr)
}
