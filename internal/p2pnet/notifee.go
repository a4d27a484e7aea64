package p2pnet

import (
	"github.com/libp2p/go-libp2p/core/network"
	ma "github.com/multiformats/go-multiaddr"
)

// netNotifee bridges libp2p's low-level connection notifications onto
// Events.Connect / Events.Disconnect. A peer may hold several
// connections at once; we only emit connect on the first and disconnect
// on the last, matching the peer-level (not connection-level) semantics
// callers expect.
type netNotifee struct {
	host *Host
}

func (n *netNotifee) Connected(net network.Network, c network.Conn) {
	p := c.RemotePeer()
	if len(net.ConnsToPeer(p)) != 1 {
		return
	}
	n.host.events.emitConnect(ConnectEvent{Peer: p})
}

func (n *netNotifee) Disconnected(net network.Network, c network.Conn) {
	p := c.RemotePeer()
	if len(net.ConnsToPeer(p)) != 0 {
		return
	}
	n.host.latMu.Lock()
	delete(n.host.latency, p)
	n.host.latMu.Unlock()
	n.host.events.emitDisconnect(DisconnectEvent{Peer: p})
}

func (n *netNotifee) Listen(network.Network, ma.Multiaddr)      {}
func (n *netNotifee) ListenClose(network.Network, ma.Multiaddr) {}
