// Package auction implements the quote auction engine: a per-session bid
// buffer with a one-shot expiry timer and a pluggable, pure selection
// function. Exactly one winner is emitted per session id, late bids are
// discarded, and no timer outlives Stop.
package auction

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/Diiisco-Inc/diiisco-node/internal/ledger"
	"github.com/Diiisco-Inc/diiisco-node/internal/logctx"
	"github.com/Diiisco-Inc/diiisco-node/internal/rendezvous"
)

var log = logctx.Logger(logctx.SubsystemAuction)

// SelectedEventPrefix is the rendezvous key prefix a winner is published
// under, keyed by session id.
const SelectedEventPrefix = "quote-selected-"

// Bid is one provider's quote-response for a session. SourcePeer carries
// the stream/gossip origin so the winner can be dialed directly for
// quote-accepted without a separate wallet-addr-to-peer-id lookup.
type Bid struct {
	SessionID  string
	FromAddr   string
	SourcePeer peer.ID
	Quote      map[string]interface{}
	TotalPrice float64
	ArrivalSeq int
	ArrivedAt  time.Time
}

// BalanceLookup is consulted by the highest-stake policy; satisfied by
// internal/ledger.Client.
type BalanceLookup interface {
	CheckIfOptedInToAsset(ctx context.Context, addr string, assetID uint64) (ledger.OptInStatus, error)
}

// PolicyFunc picks a winner from bids, which is always non-empty when
// called.
type PolicyFunc func(ctx context.Context, bids []Bid, balances BalanceLookup, assetID uint64) (Bid, error)

// Policies is the closed set of selection functions addressable by config
// tag.
var Policies = map[string]PolicyFunc{
	"cheapest":      cheapest,
	"first":         first,
	"random":        randomPolicy,
	"highest-stake": highestStake,
}

func cheapest(_ context.Context, bids []Bid, _ BalanceLookup, _ uint64) (Bid, error) {
	best := bids[0]
	for _, b := range bids[1:] {
		if b.TotalPrice < best.TotalPrice {
			best = b
		}
	}
	return best, nil
}

func first(_ context.Context, bids []Bid, _ BalanceLookup, _ uint64) (Bid, error) {
	best := bids[0]
	for _, b := range bids[1:] {
		if b.ArrivedAt.Before(best.ArrivedAt) {
			best = b
		}
	}
	return best, nil
}

func randomPolicy(_ context.Context, bids []Bid, _ BalanceLookup, _ uint64) (Bid, error) {
	return bids[rand.Intn(len(bids))], nil
}

func highestStake(ctx context.Context, bids []Bid, balances BalanceLookup, assetID uint64) (Bid, error) {
	if balances == nil {
		return Bid{}, fmt.Errorf("highest-stake policy requires a balance lookup")
	}

	best := bids[0]
	bestStatus, err := balances.CheckIfOptedInToAsset(ctx, best.FromAddr, assetID)
	if err != nil {
		return Bid{}, fmt.Errorf("lookup balance for %s: %w", best.FromAddr, err)
	}
	bestBalance := bestStatus.Balance

	for _, b := range bids[1:] {
		status, err := balances.CheckIfOptedInToAsset(ctx, b.FromAddr, assetID)
		if err != nil {
			return Bid{}, fmt.Errorf("lookup balance for %s: %w", b.FromAddr, err)
		}
		if status.Balance > bestBalance {
			best, bestBalance = b, status.Balance
		}
	}
	return best, nil
}

type sessionBids struct {
	bids   []Bid
	timer  *time.Timer
	closed bool
}

// Engine buffers bids per session id and resolves a winner after
// waitTime, publishing it on a rendezvous.Bus.
type Engine struct {
	waitTime time.Duration
	policy   PolicyFunc
	balances BalanceLookup
	assetID  uint64
	bus      *rendezvous.Bus

	mu       sync.Mutex
	sessions map[string]*sessionBids
	resolved map[string]struct{}
	nextSeq  int
}

// Config parameterizes the engine.
type Config struct {
	WaitTime       time.Duration
	SelectionPolicy string
	AssetID        uint64
}

// New builds an Engine. Returns an error if SelectionPolicy isn't one of
// the closed set in Policies.
func New(cfg Config, balances BalanceLookup, bus *rendezvous.Bus) (*Engine, error) {
	policy, ok := Policies[cfg.SelectionPolicy]
	if !ok {
		return nil, fmt.Errorf("unknown quote selection policy %q", cfg.SelectionPolicy)
	}
	waitTime := cfg.WaitTime
	if waitTime <= 0 {
		waitTime = 5 * time.Second
	}
	return &Engine{
		waitTime: waitTime,
		policy:   policy,
		balances: balances,
		assetID:  cfg.AssetID,
		bus:      bus,
		sessions: make(map[string]*sessionBids),
		resolved: make(map[string]struct{}),
	}, nil
}

// AddBid buffers bid for its session, arming the window timer on the
// first bid seen for that id. A bid arriving after the window has closed
// (quote-selected already emitted) is discarded.
func (e *Engine) AddBid(bid Bid) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sb, ok := e.sessions[bid.SessionID]
	if _, done := e.resolved[bid.SessionID]; done || (ok && sb.closed) {
		log.Debugf("discarding late bid for session %s from %s", bid.SessionID, bid.FromAddr)
		return
	}

	if !ok {
		sb = &sessionBids{}
		e.sessions[bid.SessionID] = sb
		id := bid.SessionID
		sb.timer = time.AfterFunc(e.waitTime, func() {
			e.resolve(id)
		})
	}

	bid.ArrivalSeq = e.nextSeq
	e.nextSeq++
	sb.bids = append(sb.bids, bid)
}

func (e *Engine) resolve(sessionID string) {
	e.mu.Lock()
	sb, ok := e.sessions[sessionID]
	if !ok || sb.closed {
		e.mu.Unlock()
		return
	}
	sb.closed = true
	bids := append([]Bid(nil), sb.bids...)
	delete(e.sessions, sessionID)
	e.resolved[sessionID] = struct{}{}
	e.mu.Unlock()

	if len(bids) == 0 {
		return
	}

	winner, err := e.policy(context.Background(), bids, e.balances, e.assetID)
	if err != nil {
		log.Errorf("selection policy failed for session %s: %v", sessionID, err)
		return
	}

	e.bus.Publish(SelectedEventPrefix+sessionID, winner)
}

// Stop cancels every outstanding auction timer without resolving it,
// used during shutdown.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, sb := range e.sessions {
		sb.timer.Stop()
		delete(e.sessions, id)
	}
}
