// Package router implements message egress: a direct-preferred send with
// fallback to broadcast, and nothing else. No retries, no reordering, no
// per-peer queues — correlating replies by id is the session workflow's
// job, not this layer's.
package router

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/Diiisco-Inc/diiisco-node/internal/logctx"
	"github.com/Diiisco-Inc/diiisco-node/internal/wireproto"
)

var log = logctx.Logger(logctx.SubsystemRouter)

// DeliveryFailed is returned when neither direct delivery nor broadcast
// fallback was attempted or succeeded.
type DeliveryFailed struct {
	Role wireproto.Role
}

func (e *DeliveryFailed) Error() string {
	return fmt.Sprintf("delivery failed for role %q: no direct path and fallback disabled", e.Role)
}

// DirectSender is the subset of directproto.Protocol the router needs.
type DirectSender interface {
	SendDirect(ctx context.Context, target peer.ID, data []byte) bool
}

// Broadcaster is the subset of pubsubbus.Bus the router needs.
type Broadcaster interface {
	Publish(ctx context.Context, data []byte) error
}

// Router implements Send per §4.6's ordering: direct-preferred-with-
// fallback.
type Router struct {
	direct              DirectSender
	broadcast           Broadcaster
	directEnabled       bool
	fallbackToGossipsub bool
}

// Config toggles the two knobs §4.6 exposes.
type Config struct {
	DirectMessagingEnabled bool
	FallbackToGossipsub    bool
}

// New builds a Router. direct may be nil if directMessaging.enabled is
// false.
func New(cfg Config, direct DirectSender, broadcast Broadcaster) *Router {
	return &Router{
		direct:              direct,
		broadcast:           broadcast,
		directEnabled:       cfg.DirectMessagingEnabled,
		fallbackToGossipsub: cfg.FallbackToGossipsub,
	}
}

// Send delivers an already-packed envelope. targetPeerID is used only for
// direct-preferred roles; other roles are always broadcast.
func (r *Router) Send(ctx context.Context, role wireproto.Role, data []byte, targetPeerID peer.ID) error {
	if role.DirectPreferred() && r.directEnabled && targetPeerID != "" && r.direct != nil {
		if r.direct.SendDirect(ctx, targetPeerID, data) {
			return nil
		}
		log.Debugf("direct send of %s to %s failed, falling back", role, targetPeerID)
	}

	if !r.fallbackToGossipsub {
		return &DeliveryFailed{Role: role}
	}

	if err := r.broadcast.Publish(ctx, data); err != nil {
		return fmt.Errorf("broadcast fallback for %s: %w", role, err)
	}
	return nil
}
