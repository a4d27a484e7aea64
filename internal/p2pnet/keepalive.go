package p2pnet

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// keepAliveLoop pings every currently connected peer every
// cfg.KeepAliveInterval, bounding each ping at cfg.KeepAliveTimeout.
// Failures are logged and recorded as stale latency; they never close the
// connection themselves (eviction is the connection manager's job).
func (h *Host) keepAliveLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pingAll(ctx)
		}
	}
}

func (h *Host) pingAll(ctx context.Context) {
	for _, c := range h.Connections() {
		go h.pingOne(ctx, c.Peer)
	}
}

func (h *Host) pingOne(ctx context.Context, p peer.ID) {
	pctx, cancel := context.WithTimeout(ctx, h.cfg.KeepAliveTimeout)
	defer cancel()

	results := h.ping.Ping(pctx, p)
	select {
	case res := <-results:
		if res.Error != nil {
			log.Debugf("keep-alive ping to %s failed: %v", p, res.Error)
			return
		}
		h.latMu.Lock()
		h.latency[p] = res.RTT
		h.latMu.Unlock()
	case <-pctx.Done():
		log.Debugf("keep-alive ping to %s timed out", p)
	}
}
