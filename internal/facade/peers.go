package facade

import (
	"encoding/json"
	"net/http"
)

type peerEntry struct {
	RemoteAddr   string `json:"remoteAddr"`
	PeerID       string `json:"peerId"`
	LatencyMS    int64  `json:"latencyMs"`
	Reachability string `json:"reachability"`
}

type peersResponse struct {
	Peers []peerEntry `json:"peers"`
}

// handlePeers enumerates live connections. Reachability is the node's own
// self-reported NAT posture, the only reachability data C2 tracks; it is
// attached to every entry rather than per-remote-peer.
func (f *Facade) handlePeers(w http.ResponseWriter, r *http.Request) {
	conns := f.peers.Connections()
	reach := string(f.peers.Reachability())

	out := peersResponse{Peers: make([]peerEntry, 0, len(conns))}
	for _, c := range conns {
		out.Peers = append(out.Peers, peerEntry{
			RemoteAddr:   c.RemoteAddr,
			PeerID:       c.Peer.String(),
			LatencyMS:    c.LatencyMS,
			Reachability: reach,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
