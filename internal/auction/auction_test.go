package auction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Diiisco-Inc/diiisco-node/internal/rendezvous"
)

func newTestEngine(t *testing.T, policy string, waitTime time.Duration) *Engine {
	bus := rendezvous.New()
	e, err := New(Config{WaitTime: waitTime, SelectionPolicy: policy}, nil, bus)
	require.NoError(t, err)
	return e
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	bus := rendezvous.New()
	_, err := New(Config{SelectionPolicy: "cheapest-but-typo"}, nil, bus)
	require.Error(t, err)
}

func TestCheapestPolicyPicksMinPriceTieBrokenByArrival(t *testing.T) {
	e := newTestEngine(t, "cheapest", 20*time.Millisecond)

	now := time.Now()
	e.AddBid(Bid{SessionID: "s1", FromAddr: "addr-a", TotalPrice: 5.0, ArrivedAt: now})
	e.AddBid(Bid{SessionID: "s1", FromAddr: "addr-b", TotalPrice: 5.0, ArrivedAt: now.Add(time.Millisecond)})
	e.AddBid(Bid{SessionID: "s1", FromAddr: "addr-c", TotalPrice: 9.0, ArrivedAt: now.Add(2 * time.Millisecond)})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := e.bus.Wait(ctx, SelectedEventPrefix+"s1")
	require.NoError(t, err)

	winner := v.(Bid)
	require.Equal(t, "addr-a", winner.FromAddr)
}

func TestFirstPolicyPicksEarliestArrival(t *testing.T) {
	e := newTestEngine(t, "first", 20*time.Millisecond)

	base := time.Now()
	e.AddBid(Bid{SessionID: "s2", FromAddr: "late", TotalPrice: 1, ArrivedAt: base.Add(time.Second)})
	e.AddBid(Bid{SessionID: "s2", FromAddr: "early", TotalPrice: 100, ArrivedAt: base})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := e.bus.Wait(ctx, SelectedEventPrefix+"s2")
	require.NoError(t, err)
	require.Equal(t, "early", v.(Bid).FromAddr)
}

func TestLateBidsAreDiscardedAfterResolution(t *testing.T) {
	e := newTestEngine(t, "cheapest", 10*time.Millisecond)

	e.AddBid(Bid{SessionID: "s3", FromAddr: "a", TotalPrice: 1, ArrivedAt: time.Now()})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := e.bus.Wait(ctx, SelectedEventPrefix+"s3")
	require.NoError(t, err)

	e.AddBid(Bid{SessionID: "s3", FromAddr: "b", TotalPrice: 0.01, ArrivedAt: time.Now()})

	e.mu.Lock()
	_, stillTracked := e.sessions["s3"]
	e.mu.Unlock()
	require.False(t, stillTracked, "late bid must not resurrect a resolved session")
}

func TestStopCancelsOutstandingTimers(t *testing.T) {
	e := newTestEngine(t, "cheapest", time.Hour)
	e.AddBid(Bid{SessionID: "s4", FromAddr: "a", TotalPrice: 1, ArrivedAt: time.Now()})

	e.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	require.Empty(t, e.sessions)
}
