package p2pnet

import (
	"context"

	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/network"
)

// watchReachability subscribes to libp2p's own AutoNAT reachability
// events and republishes them as ReachabilityEvent, translating its
// three-state enum onto our own so collaborating packages never import
// libp2p's event types directly.
func (h *Host) watchReachability(ctx context.Context) {
	defer h.wg.Done()

	sub, err := h.eventBus().Subscribe(new(event.EvtLocalReachabilityChanged))
	if err != nil {
		log.Errorf("subscribe reachability events: %v", err)
		return
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.Out():
			if !ok {
				return
			}
			ev := raw.(event.EvtLocalReachabilityChanged)
			r := translateReachability(ev.Reachability)
			h.setReachability(r)
			h.events.emitReachability(ReachabilityEvent{Reachability: r})
		}
	}
}

func translateReachability(r network.Reachability) Reachability {
	switch r {
	case network.ReachabilityPublic:
		return ReachabilityPublic
	case network.ReachabilityPrivate:
		return ReachabilityPrivate
	default:
		return ReachabilityUnknown
	}
}
