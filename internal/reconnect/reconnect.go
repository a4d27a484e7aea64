// Package reconnect watches the peer network for disconnects and drives
// exponential-backoff reconnection, plus periodic bootstrap recovery when
// the mesh thins out. It owns no transport of its own: it only calls back
// into a Dialer.
package reconnect

import (
	"context"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/Diiisco-Inc/diiisco-node/internal/logctx"
)

var log = logctx.Logger(logctx.SubsystemReconnect)

const (
	defaultBase                   = 5 * time.Second
	defaultMaxAttempts            = 5
	defaultCooldown               = 5 * time.Minute
	defaultBootstrapRetryInterval = 120 * time.Second
	defaultTickInterval           = 60 * time.Second
	recordEviction                = 24 * time.Hour
	recentSeenWindow              = time.Hour
)

// Dialer is the subset of p2pnet.Host the supervisor drives.
type Dialer interface {
	Dial(ctx context.Context, target string) (peer.ID, error)
	Connections() []Connection
	DialBootstrap(ctx context.Context) int
}

// Connection mirrors p2pnet.Connection without importing that package,
// keeping reconnect independently testable against a fake Dialer.
type Connection struct {
	Peer peer.ID
}

// PeerRecord tracks a peer's known dial addresses and when it was last
// seen connected.
type PeerRecord struct {
	Addrs    []string
	LastSeen time.Time
}

// ReconnectState tracks in-flight backoff bookkeeping for one peer.
type ReconnectState struct {
	Attempts      int
	LastAttemptAt time.Time
	CooldownUntil time.Time
}

// Config parameterizes backoff and bootstrap-recovery cadence.
type Config struct {
	Base                   time.Duration
	MaxAttempts            int
	Cooldown               time.Duration
	BootstrapRetryInterval time.Duration
	TickInterval           time.Duration
	MinConnections         int
}

func (c Config) withDefaults() Config {
	if c.Base <= 0 {
		c.Base = defaultBase
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
	if c.BootstrapRetryInterval <= 0 {
		c.BootstrapRetryInterval = defaultBootstrapRetryInterval
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.MinConnections <= 0 {
		c.MinConnections = 2
	}
	return c
}

// Supervisor implements C3: reconnection scheduling and bootstrap
// recovery, driven by onDiscovery/onConnect/onDisconnect and a 60s tick.
type Supervisor struct {
	cfg   Config
	dial  Dialer
	clock func() time.Time

	mu                 sync.Mutex
	records            map[peer.ID]*PeerRecord
	states             map[peer.ID]*ReconnectState
	timers             map[peer.ID]*time.Timer
	connected          map[peer.ID]bool
	lastConnCount      int
	lastBootstrapRetry time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Supervisor. dial is typically a *p2pnet.Host.
func New(cfg Config, dial Dialer) *Supervisor {
	return &Supervisor{
		cfg:       cfg.withDefaults(),
		dial:      dial,
		clock:     time.Now,
		records:   make(map[peer.ID]*PeerRecord),
		states:    make(map[peer.ID]*ReconnectState),
		timers:    make(map[peer.ID]*time.Timer),
		connected: make(map[peer.ID]bool),
	}
}

// Start launches the 60s tick loop. Awaitable on Stop.
func (s *Supervisor) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.tickLoop()
}

// Stop cancels the tick loop and every outstanding reconnection timer.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *Supervisor) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// OnDiscovery records addrs for peer without dialing; reconnection
// scheduling only fires off a disconnect, matching the supervisor's
// "observe via events" contract.
func (s *Supervisor) OnDiscovery(p peer.ID, addrs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[p]
	if !ok {
		rec = &PeerRecord{}
		s.records[p] = rec
	}
	rec.Addrs = mergeAddrs(rec.Addrs, addrs)
}

// OnConnect clears any pending reconnection state for peer and marks it
// seen now.
func (s *Supervisor) OnConnect(p peer.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected[p] = true
	s.clearState(p)

	rec, ok := s.records[p]
	if !ok {
		rec = &PeerRecord{}
		s.records[p] = rec
	}
	rec.LastSeen = s.clock()
}

// OnDisconnect marks peer no longer connected and schedules a
// reconnection attempt.
func (s *Supervisor) OnDisconnect(p peer.ID) {
	s.mu.Lock()
	delete(s.connected, p)
	s.mu.Unlock()

	s.scheduleReconnect(p)
}

func mergeAddrs(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string(nil), existing...)
	for _, a := range existing {
		seen[a] = true
	}
	for _, a := range incoming {
		if !seen[a] {
			out = append(out, a)
			seen[a] = true
		}
	}
	return out
}

// clearState removes ReconnectState and cancels any armed timer for p.
// Callers must hold s.mu.
func (s *Supervisor) clearState(p peer.ID) {
	delete(s.states, p)
	if t, ok := s.timers[p]; ok {
		t.Stop()
		delete(s.timers, p)
	}
}

// scheduleReconnect arms a backoff timer for p: BASE × 2^attempt, capped
// at MaxAttempts, reset after Cooldown has elapsed since the last attempt.
func (s *Supervisor) scheduleReconnect(p peer.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	state, ok := s.states[p]
	if ok && now.After(state.CooldownUntil) && !state.CooldownUntil.IsZero() {
		delete(s.states, p)
		state, ok = nil, false
	}
	if !ok {
		state = &ReconnectState{}
		s.states[p] = state
	}

	if state.Attempts >= s.cfg.MaxAttempts {
		return
	}

	delay := s.backoffDelay(state.Attempts)
	state.Attempts++
	state.LastAttemptAt = now
	state.CooldownUntil = now.Add(s.cfg.Cooldown)

	if old, ok := s.timers[p]; ok {
		old.Stop()
	}
	s.timers[p] = time.AfterFunc(delay, func() {
		s.attemptReconnect(p)
	})
}

// backoffDelay returns the delay before attempt number attempts (counting
// from zero): BASE × 2^attempts.
func (s *Supervisor) backoffDelay(attempts int) time.Duration {
	return s.cfg.Base * time.Duration(1<<uint(attempts))
}

// attemptReconnect tries every known address for p in insertion order,
// stopping at the first success.
func (s *Supervisor) attemptReconnect(p peer.ID) {
	s.mu.Lock()
	if s.connected[p] {
		s.clearState(p)
		s.mu.Unlock()
		return
	}
	rec, ok := s.records[p]
	var addrs []string
	if ok {
		addrs = append(addrs, rec.Addrs...)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.backgroundCtx(), 30*time.Second)
	defer cancel()

	for _, addr := range addrs {
		if _, err := s.dial.Dial(ctx, addr); err == nil {
			s.mu.Lock()
			s.clearState(p)
			s.mu.Unlock()
			return
		}
	}

	s.scheduleReconnect(p)
}

func (s *Supervisor) backgroundCtx() context.Context {
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}

// ReconnectToBootstrap dials every bootstrap address sequentially,
// returning the count that succeeded, then waits 5s for the mesh to
// settle before returning.
func (s *Supervisor) ReconnectToBootstrap(ctx context.Context) int {
	n := s.dial.DialBootstrap(ctx)
	select {
	case <-time.After(5 * time.Second):
	case <-ctx.Done():
	}
	return n
}

// tick implements the periodic recovery pass: immediate bootstrap
// recovery when disconnected entirely, rate-limited recovery when
// thin, then per-peer reconnection sweeps and eviction of stale records.
func (s *Supervisor) tick() {
	conns := s.dial.Connections()
	count := len(conns)

	s.mu.Lock()
	changed := count != s.lastConnCount
	s.lastConnCount = count
	s.mu.Unlock()

	if changed {
		log.Infof("connection count changed: %d peers", count)
	}

	ctx := s.backgroundCtx()

	switch {
	case count == 0:
		s.ReconnectToBootstrap(ctx)

	case count < s.cfg.MinConnections:
		s.mu.Lock()
		due := s.clock().Sub(s.lastBootstrapRetry) >= s.cfg.BootstrapRetryInterval
		if due {
			s.lastBootstrapRetry = s.clock()
		}
		s.mu.Unlock()
		if due {
			s.ReconnectToBootstrap(ctx)
		}
	}

	s.sweepRecords()
}

// sweepRecords schedules reconnection for known-but-disconnected peers
// seen within the last hour, respecting per-peer cooldown, and evicts
// records older than 24h.
func (s *Supervisor) sweepRecords() {
	now := s.clock()

	s.mu.Lock()
	type candidate struct {
		id  peer.ID
		rec *PeerRecord
	}
	var toSchedule []candidate
	for id, rec := range s.records {
		if now.Sub(rec.LastSeen) > recordEviction {
			delete(s.records, id)
			delete(s.states, id)
			if t, ok := s.timers[id]; ok {
				t.Stop()
				delete(s.timers, id)
			}
			continue
		}
		if s.connected[id] {
			continue
		}
		if now.Sub(rec.LastSeen) > recentSeenWindow {
			continue
		}
		if st, ok := s.states[id]; ok && now.Before(st.CooldownUntil) && st.Attempts >= s.cfg.MaxAttempts {
			continue
		}
		toSchedule = append(toSchedule, candidate{id: id, rec: rec})
	}
	s.mu.Unlock()

	for _, c := range toSchedule {
		s.scheduleReconnect(c.id)
	}
}
