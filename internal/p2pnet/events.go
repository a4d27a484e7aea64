package p2pnet

import (
	"github.com/libp2p/go-libp2p/core/peer"
)

// Reachability is the node's self-reported NAT posture.
type Reachability string

const (
	ReachabilityPublic  Reachability = "public"
	ReachabilityPrivate Reachability = "private"
	ReachabilityUnknown Reachability = "unknown"
)

// DiscoveryEvent fires when a new candidate peer address is learned, via
// mDNS or the bootstrap list, before any dial is attempted.
type DiscoveryEvent struct {
	Peer  peer.ID
	Addrs []string
}

// ConnectEvent fires once a connection to Peer is established (inbound or
// outbound).
type ConnectEvent struct {
	Peer peer.ID
}

// DisconnectEvent fires once the last connection to Peer drops.
type DisconnectEvent struct {
	Peer peer.ID
}

// ReachabilityEvent fires when the node's own reachability classification
// changes.
type ReachabilityEvent struct {
	Reachability Reachability
}

// Events is the set of channels a caller subscribes to at construction
// time. Each channel is buffered and emitting never blocks: an event that
// arrives while its channel's buffer is full is dropped.
type Events struct {
	Discovery    chan DiscoveryEvent
	Connect      chan ConnectEvent
	Disconnect   chan DisconnectEvent
	Reachability chan ReachabilityEvent
}

func newEvents() *Events {
	return &Events{
		Discovery:    make(chan DiscoveryEvent, 64),
		Connect:      make(chan ConnectEvent, 64),
		Disconnect:   make(chan DisconnectEvent, 64),
		Reachability: make(chan ReachabilityEvent, 4),
	}
}

func (e *Events) emitDiscovery(ev DiscoveryEvent) {
	select {
	case e.Discovery <- ev:
	default:
	}
}

func (e *Events) emitConnect(ev ConnectEvent) {
	select {
	case e.Connect <- ev:
	default:
	}
}

func (e *Events) emitDisconnect(ev DisconnectEvent) {
	select {
	case e.Disconnect <- ev:
	default:
	}
}

func (e *Events) emitReachability(ev ReachabilityEvent) {
	select {
	case e.Reachability <- ev:
	default:
	}
}
