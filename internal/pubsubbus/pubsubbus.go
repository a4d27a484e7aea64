// Package pubsubbus wraps gossipsub into the application's single
// well-known topic: unreliable, at-most-once, no cross-publisher
// ordering, with emit-self and zero-peer publish both permitted.
package pubsubbus

import (
	"context"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	pubsub "github.com/libp2p/go-libp2p-pubsub"

	"github.com/Diiisco-Inc/diiisco-node/internal/logctx"
)

var log = logctx.Logger(logctx.SubsystemPubSub)

// DefaultTopic is the well-known topic every node joins.
const DefaultTopic = "diiisco/models/1.0.0"

// ErrNoMesh is returned by WaitForMesh when the deadline elapses before
// enough peers join the mesh.
type ErrNoMesh struct {
	Topic   string
	MinSubs int
}

func (e *ErrNoMesh) Error() string {
	return fmt.Sprintf("no mesh: topic %q has fewer than %d subscribers", e.Topic, e.MinSubs)
}

// Handler processes one inbound message's raw bytes and the originating
// peer. Decoding into an envelope is the caller's job (internal/wireproto).
type Handler func(from peer.ID, data []byte)

// Bus joins a single gossipsub topic and fans inbound messages out to a
// Handler, including the node's own publications.
type Bus struct {
	ps      *pubsub.PubSub
	self    peer.ID
	topic   *pubsub.Topic
	sub     *pubsub.Subscription
	handler Handler

	cancel context.CancelFunc
}

// New creates a gossipsub instance over h and joins topic.
func New(ctx context.Context, h host.Host, topic string) (*Bus, error) {
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("create gossipsub: %w", err)
	}

	t, err := ps.Join(topic)
	if err != nil {
		return nil, fmt.Errorf("join topic %q: %w", topic, err)
	}

	sub, err := t.Subscribe()
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("subscribe to topic %q: %w", topic, err)
	}

	return &Bus{ps: ps, self: h.ID(), topic: t, sub: sub}, nil
}

// Start launches the read loop, delivering every message (including the
// node's own) to handler until ctx is cancelled or Close is called.
func (b *Bus) Start(ctx context.Context, handler Handler) {
	ctx, b.cancel = context.WithCancel(ctx)
	b.handler = handler
	go b.readLoop(ctx)
}

func (b *Bus) readLoop(ctx context.Context) {
	for {
		msg, err := b.sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Errorf("pubsub read error: %v", err)
			return
		}
		from := msg.ReceivedFrom
		b.handler(from, msg.Data)
	}
}

// Publish broadcasts data on the topic. Gossipsub treats a mesh with zero
// subscribers as a no-op rather than an error, matching the requirement
// that zero-peer publishing be permitted.
func (b *Bus) Publish(ctx context.Context, data []byte) error {
	return b.topic.Publish(ctx, data)
}

// WaitForMesh blocks until at least minSubs peers are listed for the
// topic or timeout elapses.
func (b *Bus) WaitForMesh(ctx context.Context, minSubs int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	if len(b.topic.ListPeers()) >= minSubs {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return &ErrNoMesh{Topic: b.topic.String(), MinSubs: minSubs}
		case <-ticker.C:
			if len(b.topic.ListPeers()) >= minSubs {
				return nil
			}
		}
	}
}

// Close cancels the read loop and leaves the topic.
func (b *Bus) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	b.sub.Cancel()
	return b.topic.Close()
}
