package reconnect

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"
)

type fakeDialer struct {
	mu        sync.Mutex
	dials     []string
	failUntil int
	conns     []Connection
}

func (f *fakeDialer) Dial(_ context.Context, target string) (peer.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials = append(f.dials, target)
	if len(f.dials) <= f.failUntil {
		return "", errDial
	}
	return "p1", nil
}

func (f *fakeDialer) Connections() []Connection { return f.conns }

func (f *fakeDialer) DialBootstrap(context.Context) int { return 0 }

var errDial = fakeErr("dial failed")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

func newTestSupervisor(d Dialer) *Supervisor {
	s := New(Config{
		Base:                   time.Millisecond,
		MaxAttempts:            5,
		Cooldown:               time.Hour,
		BootstrapRetryInterval: time.Hour,
		TickInterval:           time.Hour,
	}, d)
	return s
}

func TestScheduleReconnectBackoffDoubles(t *testing.T) {
	d := &fakeDialer{failUntil: 100}
	s := newTestSupervisor(d)

	var delays []time.Duration
	s.mu.Lock()
	base := s.cfg.Base
	max := s.cfg.MaxAttempts
	s.mu.Unlock()

	for i := 0; i < max; i++ {
		delays = append(delays, s.backoffDelay(i))
	}

	require.Equal(t, []time.Duration{base, 2 * base, 4 * base, 8 * base, 16 * base}, delays)
}

func TestAttemptReconnectStopsOnFirstSuccess(t *testing.T) {
	d := &fakeDialer{failUntil: 1}
	s := newTestSupervisor(d)
	p := peer.ID("target")

	s.OnDiscovery(p, []string{"/ip4/1.1.1.1/tcp/1", "/ip4/2.2.2.2/tcp/2"})
	s.attemptReconnect(p)

	d.mu.Lock()
	defer d.mu.Unlock()
	require.Len(t, d.dials, 2)

	s.mu.Lock()
	_, stillPending := s.states[p]
	s.mu.Unlock()
	require.False(t, stillPending, "a failed-then-succeeded attempt still clears state via attemptReconnect, not scheduleReconnect's cooldown path")
}

func TestScheduleReconnectStopsAtMaxAttempts(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSupervisor(d)
	p := peer.ID("capped")

	for i := 0; i < 10; i++ {
		s.scheduleReconnect(p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Equal(t, s.cfg.MaxAttempts, s.states[p].Attempts)
}

func TestOnConnectClearsState(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSupervisor(d)
	p := peer.ID("reconnected")

	s.scheduleReconnect(p)
	s.OnConnect(p)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.states[p]
	require.False(t, exists)
	_, timerExists := s.timers[p]
	require.False(t, timerExists)
}

func TestStopCancelsOutstandingTimers(t *testing.T) {
	d := &fakeDialer{failUntil: 1000}
	s := newTestSupervisor(d)
	s.Start(context.Background())

	s.scheduleReconnect(peer.ID("a"))
	s.scheduleReconnect(peer.ID("b"))

	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Empty(t, s.timers)
}
