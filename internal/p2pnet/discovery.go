package p2pnet

import (
	"context"
	"io"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
)

const (
	mdnsServiceTag = "diiisco-node"
	peerstoreTTL   = 24 * time.Hour
)

// mdnsNotifee adapts mDNS's HandlePeerFound callback onto Events.Discovery
// without dialing: discovery and connection are separate concerns, the
// reconnection supervisor decides when to dial a discovered peer.
type mdnsNotifee struct {
	host *Host
}

func (n *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	addrs := make([]string, 0, len(pi.Addrs))
	for _, a := range pi.Addrs {
		addrs = append(addrs, a.String())
	}
	n.host.Peerstore().AddAddrs(pi.ID, pi.Addrs, peerstoreTTL)
	n.host.events.emitDiscovery(DiscoveryEvent{Peer: pi.ID, Addrs: addrs})
}

// StartMDNS launches local-network auto-discovery. The returned closer
// must be invoked on shutdown.
func (h *Host) StartMDNS() (io.Closer, error) {
	svc := mdns.NewMdnsService(h.host, mdnsServiceTag, &mdnsNotifee{host: h})
	if err := svc.Start(); err != nil {
		return nil, err
	}
	return svc, nil
}

// DialBootstrap dials every configured bootstrap address sequentially and
// returns the count that succeeded. Used both at startup and by the
// reconnection supervisor's reconnectToBootstrap.
func (h *Host) DialBootstrap(ctx context.Context) int {
	succeeded := 0
	for _, addr := range h.cfg.Bootstrap {
		if _, err := h.Dial(ctx, addr); err != nil {
			log.Warnf("bootstrap dial to %s failed: %v", addr, err)
			continue
		}
		succeeded++
	}
	return succeeded
}
