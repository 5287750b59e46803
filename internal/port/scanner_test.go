package port

import (
	"context"
	"math/rand/v2"
	"net"
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/ipsniffer/internal/model"
)

// fakeTarget is a Prober that reports a fixed set of ports as open and
// records how often each port was probed.
type fakeTarget struct {
	open   map[uint16]bool
	mu     sync.Mutex
	probes map[uint16]int
}

func newFakeTarget(open ...uint16) *fakeTarget {
	f := &fakeTarget{open: make(map[uint16]bool), probes: make(map[uint16]int)}
	for _, p := range open {
		f.open[p] = true
	}
	return f
}

func (f *fakeTarget) Probe(_ context.Context, addr netip.AddrPort) bool {
	f.mu.Lock()
	f.probes[addr.Port()]++
	f.mu.Unlock()
	return f.open[addr.Port()]
}

// testConfig builds a ScanConfig against the loopback address.
func testConfig(t *testing.T, workers uint16) model.ScanConfig {
	t.Helper()
	cfg, err := model.NewScanConfig("127.0.0.1", workers, 0)
	require.NoError(t, err)
	return cfg
}

// TestScan_ExpectedPorts is the reference scenario: listeners on 22 and 8080
// only, four workers, result exactly [22, 8080].
func TestScan_ExpectedPorts(t *testing.T) {
	target := newFakeTarget(8080, 22)
	scanner := NewScanner(WithProber(target))

	ports, err := scanner.Scan(context.Background(), testConfig(t, 4))
	require.NoError(t, err)
	assert.Equal(t, []uint16{22, 8080}, ports)
}

// TestScan_EveryPortProbedOnce verifies the partition through the full
// engine: each port from 1 to 65535 is probed exactly once.
func TestScan_EveryPortProbedOnce(t *testing.T) {
	for _, workers := range []uint16{1, 3, 7, 64} {
		target := newFakeTarget()
		scanner := NewScanner(WithProber(target))

		_, err := scanner.Scan(context.Background(), testConfig(t, workers))
		require.NoError(t, err)

		assert.Len(t, target.probes, int(model.MaxPort), "workers=%d", workers)
		assert.Zero(t, target.probes[0])
		for p, n := range target.probes {
			if n != 1 {
				require.Failf(t, "duplicate probe", "port %d probed %d times with %d workers", p, n, workers)
			}
		}
	}
}

// TestScan_BoundaryPorts makes sure the lowest and highest ports are
// reported for worker counts where they land on different workers.
func TestScan_BoundaryPorts(t *testing.T) {
	for _, workers := range []uint16{1, 2, 4, 7, 65535} {
		target := newFakeTarget(1, model.MaxPort)
		ports, err := NewScanner(WithProber(target)).Scan(context.Background(), testConfig(t, workers))
		require.NoError(t, err)
		assert.Equal(t, []uint16{1, model.MaxPort}, ports, "workers=%d", workers)
	}
}

// TestScan_NoOpenPorts verifies that a target where every connect fails
// yields an empty, non-nil result and no error.
func TestScan_NoOpenPorts(t *testing.T) {
	ports, err := NewScanner(WithProber(newFakeTarget())).Scan(context.Background(), testConfig(t, 4))
	require.NoError(t, err)
	assert.NotNil(t, ports)
	assert.Empty(t, ports)
}

// TestScan_ZeroWorkers covers the degenerate configuration that validation
// normally rejects: the channel closes immediately and the result is empty.
func TestScan_ZeroWorkers(t *testing.T) {
	cfg := model.ScanConfig{Target: netip.MustParseAddr("127.0.0.1")}
	ports, err := NewScanner(WithProber(newFakeTarget(80))).Scan(context.Background(), cfg)
	require.NoError(t, err)
	assert.Empty(t, ports)
}

// TestScan_Idempotent scans the same stable target twice and expects the
// same result set.
func TestScan_Idempotent(t *testing.T) {
	target := newFakeTarget(21, 443, 3306, 65000)
	scanner := NewScanner(WithProber(target))
	cfg := testConfig(t, 16)

	first, err := scanner.Scan(context.Background(), cfg)
	require.NoError(t, err)
	second, err := scanner.Scan(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// TestScan_ManyWorkersNothingOpen runs 50 workers against a closed target.
// The scan must finish without deadlock and report nothing.
func TestScan_ManyWorkersNothingOpen(t *testing.T) {
	cfg := testConfig(t, 50)
	done := make(chan []uint16, 1)
	go func() {
		ports, err := NewScanner(WithProber(newFakeTarget())).Scan(context.Background(), cfg)
		assert.NoError(t, err)
		done <- ports
	}()

	select {
	case ports := <-done:
		assert.Empty(t, ports)
	case <-time.After(10 * time.Second):
		t.Fatal("scan with 50 workers did not finish")
	}
}

// TestScan_ProgressHook verifies the hook fires once per open port.
func TestScan_ProgressHook(t *testing.T) {
	var ticks atomic.Int32
	var mu sync.Mutex
	var seen []uint16

	scanner := NewScanner(
		WithProber(newFakeTarget(80, 443, 8443)),
		WithProgress(func(p uint16) {
			ticks.Add(1)
			mu.Lock()
			seen = append(seen, p)
			mu.Unlock()
		}),
	)

	ports, err := scanner.Scan(context.Background(), testConfig(t, 8))
	require.NoError(t, err)
	assert.Equal(t, []uint16{80, 443, 8443}, ports)
	assert.Equal(t, int32(3), ticks.Load())
	assert.ElementsMatch(t, ports, seen)
}

// TestScan_Cancelled verifies that cancelling the context stops every worker
// promptly and surfaces context.Canceled instead of partial results.
func TestScan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var probes atomic.Int32
	slow := ProberFunc(func(ctx context.Context, addr netip.AddrPort) bool {
		if probes.Add(1) == 100 {
			cancel()
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Millisecond):
			return addr.Port()%2 == 0
		}
	})

	start := time.Now()
	ports, err := NewScanner(WithProber(slow)).Scan(ctx, testConfig(t, 4))
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, ports)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Less(t, int(probes.Load()), int(model.MaxPort))
}

// TestScan_Loopback runs a real TCP connect scan against two listeners the
// test opens itself. Other services on the machine may also be listening, so
// only the presence of our ports is asserted.
func TestScan_Loopback(t *testing.T) {
	if testing.Short() {
		t.Skip("full-range loopback scan skipped in -short mode")
	}

	var want []uint16
	for range 2 {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err, "failed to start test listener")
		defer func() { _ = ln.Close() }()

		tcpAddr, ok := ln.Addr().(*net.TCPAddr)
		require.True(t, ok)
		want = append(want, uint16(tcpAddr.Port))
	}

	cfg, err := model.NewScanConfig("127.0.0.1", 128, time.Second)
	require.NoError(t, err)

	ports, err := NewScanner().Scan(context.Background(), cfg)
	require.NoError(t, err)

	assert.True(t, slices.IsSorted(ports))
	for _, p := range want {
		assert.Contains(t, ports, p, "listener port %d should be reported open", p)
	}
}

// TestTCPProber verifies open and closed classification against loopback.
func TestTCPProber(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	tcpAddr, ok := ln.Addr().(*net.TCPAddr)
	require.True(t, ok)
	addr := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), uint16(tcpAddr.Port))

	prober := NewTCPProber(time.Second)
	assert.True(t, prober.Probe(context.Background(), addr), "listening port should be open")

	// After closing the listener the same port refuses connections.
	require.NoError(t, ln.Close())
	assert.False(t, prober.Probe(context.Background(), addr), "closed port should not be open")
}

// TestTCPProber_CancelledContext verifies that a cancelled context fails the
// probe instead of dialing.
func TestTCPProber_CancelledContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	tcpAddr, ok := ln.Addr().(*net.TCPAddr)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	addr := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), uint16(tcpAddr.Port))
	assert.False(t, NewTCPProber(0).Probe(ctx, addr))
}

// TestCollect_SortsInterleavedInput feeds shuffled ports from several
// concurrent senders and expects the exact sorted set back.
func TestCollect_SortsInterleavedInput(t *testing.T) {
	input := []uint16{65535, 1, 8080, 22, 443, 3306, 80, 5432, 6379, 2}
	want := slices.Clone(input)
	slices.Sort(want)

	rand.Shuffle(len(input), func(i, j int) { input[i], input[j] = input[j], input[i] })

	results := make(chan uint16)
	var wg sync.WaitGroup
	const senders = 3
	for s := range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := s; i < len(input); i += senders {
				results <- input[i]
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	got := Collect(results)
	assert.Equal(t, want, got)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i], "result must be strictly ascending")
	}
}

// TestCollect_ClosedChannel verifies an immediately-closed channel yields an
// empty, non-nil slice.
func TestCollect_ClosedChannel(t *testing.T) {
	results := make(chan uint16)
	close(results)

	got := Collect(results)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
