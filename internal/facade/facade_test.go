package facade

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/Diiisco-Inc/diiisco-node/internal/auction"
	"github.com/Diiisco-Inc/diiisco-node/internal/ledger"
	"github.com/Diiisco-Inc/diiisco-node/internal/p2pnet"
	"github.com/Diiisco-Inc/diiisco-node/internal/processor"
	"github.com/Diiisco-Inc/diiisco-node/internal/rendezvous"
	"github.com/Diiisco-Inc/diiisco-node/internal/session"
	"github.com/Diiisco-Inc/diiisco-node/internal/wireproto"
)

type fakePeers struct {
	conns []p2pnet.Connection
}

func (f *fakePeers) Connections() []p2pnet.Connection    { return f.conns }
func (f *fakePeers) Reachability() p2pnet.Reachability { return p2pnet.ReachabilityPublic }

type fakeBroadcast struct {
	bus       *rendezvous.Bus
	published [][]byte
	meshErr   error
}

func (f *fakeBroadcast) WaitForMesh(context.Context, int, time.Duration) error { return f.meshErr }

func (f *fakeBroadcast) Publish(_ context.Context, data []byte) error {
	f.published = append(f.published, data)

	env, err := wireproto.Unpack(data)
	if err != nil {
		return err
	}
	if env.Role == wireproto.RoleQuoteRequest {
		id := env.ID
		go func() {
			time.Sleep(5 * time.Millisecond)
			f.bus.Publish(auction.SelectedEventPrefix+id, auction.Bid{
				SessionID:  id,
				FromAddr:   "provider-addr",
				SourcePeer: peer.ID("provider-peer"),
				Quote:      map[string]interface{}{"totalPrice": 1.5, "model": "gpt-test"},
				TotalPrice: 1.5,
			})
		}()
	}
	return nil
}

type fakeRouter struct {
	bus  *rendezvous.Bus
	sent []wireproto.Role
}

func (f *fakeRouter) Send(_ context.Context, role wireproto.Role, data []byte, _ peer.ID) error {
	f.sent = append(f.sent, role)

	env, err := wireproto.Unpack(data)
	if err != nil {
		return err
	}
	if env.Role == wireproto.RoleQuoteAccepted {
		id := env.ID
		go func() {
			time.Sleep(5 * time.Millisecond)
			f.bus.Publish(processor.InferenceResponsePrefix+id, "hello from provider")
		}()
	}
	return nil
}

type fakeAccum struct{ resets int }

func (f *fakeAccum) Reset() { f.resets++ }

func newTestFacade(t *testing.T) (*Facade, *fakeBroadcast, *fakeRouter) {
	t.Helper()

	ledgerClient, err := ledger.NewSimClient()
	require.NoError(t, err)

	bus := rendezvous.New()
	broadcast := &fakeBroadcast{bus: bus}
	router := &fakeRouter{bus: bus}
	sessions := session.New()
	accum := &fakeAccum{}
	peers := &fakePeers{conns: []p2pnet.Connection{{Peer: peer.ID("peerA"), RemoteAddr: "/ip4/1.2.3.4/tcp/4001", LatencyMS: 12}}}

	cfg := Config{
		OwnWalletAddr:   ledgerClient.Account.Address(),
		AuctionWaitTime: 200 * time.Millisecond,
		MeshWaitTimeout: 200 * time.Millisecond,
		OuterDeadline:   500 * time.Millisecond,
	}

	f := New(cfg, peers, broadcast, router, bus, sessions, accum, ledgerClient)
	return f, broadcast, router
}

func TestHealthBeforeReady(t *testing.T) {
	f, _, _ := newTestFacade(t)
	w := httptest.NewRecorder()
	f.handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthAfterReady(t *testing.T) {
	f, _, _ := newTestFacade(t)
	f.MarkReady()
	w := httptest.NewRecorder()
	f.handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestPeersListsConnections(t *testing.T) {
	f, _, _ := newTestFacade(t)
	w := httptest.NewRecorder()
	f.handlePeers(w, httptest.NewRequest(http.MethodGet, "/peers", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body peersResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Peers, 1)
	require.Equal(t, peer.ID("peerA").String(), body.Peers[0].PeerID)
	require.Equal(t, "public", body.Peers[0].Reachability)
}

func TestChatCompletionsRejectsMissingFields(t *testing.T) {
	f, _, _ := newTestFacade(t)
	body, _ := json.Marshal(map[string]interface{}{"model": ""})
	w := httptest.NewRecorder()
	f.handleChatCompletions(w, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatCompletionsHappyPath(t *testing.T) {
	f, broadcast, router := newTestFacade(t)

	reqBody, _ := json.Marshal(map[string]interface{}{
		"model":    "gpt-test",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	w := httptest.NewRecorder()
	f.handleChatCompletions(w, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(reqBody)))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, broadcast.published, 1)
	require.Equal(t, []wireproto.Role{wireproto.RoleQuoteAccepted}, router.sent)

	var resp chatResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "hello from provider", resp.Choices[0].Message.Content)
}

func TestModelsTimesOutWithoutCompiledList(t *testing.T) {
	f, _, _ := newTestFacade(t)
	w := httptest.NewRecorder()
	f.handleModels(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
}
