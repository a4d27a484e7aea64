// Package p2pnet wraps a libp2p host into the peer network surface: an
// encrypted, multiplexed transport with local and bootstrap discovery,
// relay-assisted NAT traversal, a connection manager, and keep-alive
// probing. Every other transport-facing package (pubsubbus, directproto,
// reconnect) is built against the Host exposed here rather than the raw
// libp2p API.
package p2pnet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/connmgr"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"
	connmgrimpl "github.com/libp2p/go-libp2p/p2p/net/connmgr"
	libp2pping "github.com/libp2p/go-libp2p/p2p/protocol/ping"
	relayv2 "github.com/libp2p/go-libp2p/p2p/protocol/circuitv2/relay"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/Diiisco-Inc/diiisco-node/internal/logctx"
)

var log = logctx.Logger(logctx.SubsystemP2P)

// AliasResolver resolves a DNS-like bootstrap alias to a full multiaddr.
// internal/ledger.Client satisfies this via ResolveBootstrapAlias.
type AliasResolver interface {
	ResolveBootstrapAlias(ctx context.Context, alias string) (multiaddr string, ok bool, err error)
}

// Host is the running peer network. Construct with New, then Start.
type Host struct {
	cfg      Config
	resolver AliasResolver

	host    host.Host
	connmgr connmgr.ConnManager
	ping    *libp2pping.PingService

	events *Events

	latMu    sync.RWMutex
	latency  map[peer.ID]time.Duration

	reachMu      sync.RWMutex
	reachability Reachability

	cancel context.CancelFunc
	wg     sync.WaitGroup

	notifee *netNotifee
}

// New builds a Host around an already loaded or generated private key
// (see internal/identity.LoadOrCreate). Start must be called before the
// host accepts or initiates connections.
func New(cfg Config, priv crypto.PrivKey, resolver AliasResolver) (*Host, error) {
	cfg = cfg.withDefaults()

	cm, err := connmgrimpl.NewConnManager(cfg.MinConnections, cfg.MaxConnections,
		connmgrimpl.WithGracePeriod(time.Minute))
	if err != nil {
		return nil, fmt.Errorf("create connection manager: %w", err)
	}

	opts := []libp2p.Option{
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(cfg.ListenAddrs...),
		libp2p.ConnectionManager(cm),
		libp2p.EnableNATService(),
	}
	if cfg.EnableRelayClient {
		opts = append(opts, libp2p.EnableAutoRelayWithStaticRelays(nil))
	}
	if cfg.EnableRelayServer {
		opts = append(opts, libp2p.EnableRelayService(
			relayv2.WithResources(relayv2.Resources{
				MaxReservations: cfg.MaxRelayedConnections,
			}),
		))
	}
	if cfg.EnableDCUtR {
		opts = append(opts, libp2p.EnableHolePunching())
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}

	hn := &Host{
		cfg:          cfg,
		resolver:     resolver,
		host:         h,
		connmgr:      cm,
		ping:         libp2pping.NewPingService(h),
		events:       newEvents(),
		latency:      make(map[peer.ID]time.Duration),
		reachability: ReachabilityUnknown,
	}
	hn.notifee = &netNotifee{host: hn}
	h.Network().Notify(hn.notifee)

	return hn, nil
}

// Events returns the event channels peer:discovery, peer:connect,
// peer:disconnect, self:reachability are delivered on.
func (h *Host) Events() *Events {
	return h.events
}

// ID returns the node's own peer id.
func (h *Host) ID() peer.ID {
	return h.host.ID()
}

// Libp2pHost exposes the underlying host for collaborating packages
// (pubsubbus wraps pubsub.NewGossipSub around it; directproto registers
// stream handlers directly).
func (h *Host) Libp2pHost() host.Host {
	return h.host
}

// Start launches the reachability watcher and keep-alive loop. It does
// not block and does not dial the bootstrap list; callers dial it with
// DialBootstrap.
func (h *Host) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel

	h.wg.Add(2)
	go h.watchReachability(ctx)
	go h.keepAliveLoop(ctx)

	log.Infof("peer network started, id=%s addrs=%v", h.host.ID(), h.host.Addrs())
	return nil
}

// Stop cancels all background loops and closes the libp2p host. Awaitable:
// it does not return until every background goroutine has exited.
func (h *Host) Stop() error {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
	return h.host.Close()
}

// Listen returns the addresses currently being listened on.
func (h *Host) Listen() []ma.Multiaddr {
	return h.host.Addrs()
}

// Dial connects to target, which may be a full multiaddr or, if a
// resolver was supplied, a bootstrap alias. Classifies failures into
// DialError so callers can branch on cause.
func (h *Host) Dial(ctx context.Context, target string) (peer.ID, error) {
	resolved, err := h.resolveAlias(ctx, target)
	if err != nil {
		return "", err
	}

	addr, err := ma.NewMultiaddr(resolved)
	if err != nil {
		return "", &DialError{Kind: Unreachable, Cause: err}
	}

	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return "", &DialError{Kind: Unreachable, Cause: err}
	}

	if err := h.host.Connect(ctx, *info); err != nil {
		return "", classifyDialErr(err)
	}
	return info.ID, nil
}

func (h *Host) resolveAlias(ctx context.Context, target string) (string, error) {
	if h.resolver == nil {
		return target, nil
	}
	resolved, ok, err := h.resolver.ResolveBootstrapAlias(ctx, target)
	if err != nil {
		return "", fmt.Errorf("resolve bootstrap alias %q: %w", target, err)
	}
	if !ok {
		return target, nil
	}
	return resolved, nil
}

// Connections enumerates currently connected peers and their first known
// remote address, the shape the request façade's /peers handler returns.
type Connection struct {
	Peer       peer.ID
	RemoteAddr string
	LatencyMS  int64
}

func (h *Host) Connections() []Connection {
	conns := h.host.Network().Conns()
	out := make([]Connection, 0, len(conns))

	h.latMu.RLock()
	defer h.latMu.RUnlock()

	seen := make(map[peer.ID]bool, len(conns))
	for _, c := range conns {
		p := c.RemotePeer()
		if seen[p] {
			continue
		}
		seen[p] = true

		out = append(out, Connection{
			Peer:       p,
			RemoteAddr: c.RemoteMultiaddr().String(),
			LatencyMS:  h.latency[p].Milliseconds(),
		})
	}
	return out
}

// OpenStream opens a stream to peer on protocol. Used by directproto's
// client side.
func (h *Host) OpenStream(ctx context.Context, p peer.ID, proto protocol.ID) (network.Stream, error) {
	s, err := h.host.NewStream(ctx, p, proto)
	if err != nil {
		return nil, classifyDialErr(err)
	}
	return s, nil
}

// HandleProtocol registers handler as the inbound stream handler for
// proto. Used by directproto's server side.
func (h *Host) HandleProtocol(proto protocol.ID, handler network.StreamHandler) {
	h.host.SetStreamHandler(proto, handler)
}

// Peerstore exposes the underlying peerstore so discovery mechanisms can
// record addresses ahead of a dial.
func (h *Host) Peerstore() peerstore.Peerstore {
	return h.host.Peerstore()
}

// Reachability returns the node's last-observed NAT posture. Unknown
// until the first AutoNAT classification arrives.
func (h *Host) Reachability() Reachability {
	h.reachMu.RLock()
	defer h.reachMu.RUnlock()
	return h.reachability
}

func (h *Host) setReachability(r Reachability) {
	h.reachMu.Lock()
	h.reachability = r
	h.reachMu.Unlock()
}

// eventBus exposes the host's local event bus for the reachability
// watcher; kept unexported since only this package's internals subscribe.
func (h *Host) eventBus() event.Bus {
	return h.host.EventBus()
}
