// Package facade implements the HTTP surface that is the system's
// canonical external entry point: health/peers introspection plus an
// OpenAI-compatible models/chat-completions surface that drives the
// quote auction and session workflow on the caller's behalf.
package facade

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/Diiisco-Inc/diiisco-node/internal/logctx"
	"github.com/Diiisco-Inc/diiisco-node/internal/p2pnet"
	"github.com/Diiisco-Inc/diiisco-node/internal/session"
	"github.com/Diiisco-Inc/diiisco-node/internal/wireproto"
)

var log = logctx.Logger(logctx.SubsystemFacade)

// Peers is the subset of *p2pnet.Host the façade reads for introspection.
type Peers interface {
	Connections() []p2pnet.Connection
	Reachability() p2pnet.Reachability
}

// Broadcaster is the subset of *pubsubbus.Bus the façade needs to publish
// and to gate on mesh readiness before publishing.
type Broadcaster interface {
	Publish(ctx context.Context, data []byte) error
	WaitForMesh(ctx context.Context, minSubs int, timeout time.Duration) error
}

// DirectRouter is the subset of *router.Router needed to reach a winning
// provider directly for quote-accepted.
type DirectRouter interface {
	Send(ctx context.Context, role wireproto.Role, data []byte, target peer.ID) error
}

// RendezvousWaiter is the subset of *rendezvous.Bus the façade blocks on.
type RendezvousWaiter interface {
	Wait(ctx context.Context, key string) (interface{}, error)
	Clear(key string)
}

// Sessions is the subset of *session.Table the façade drives as the
// customer side of a negotiation.
type Sessions interface {
	Begin(id string, role session.Role) bool
	Transition(id string, next session.State) bool
	Drop(id string)
}

// ModelAccumulator is the subset of *model.Accumulator the façade resets
// ahead of each /v1/models round.
type ModelAccumulator interface {
	Reset()
}

// Signer signs an envelope; satisfied by internal/ledger.Client.
type Signer = wireproto.Signer

// Config parameterizes the façade surface. Port, BearerAuthEnabled and
// Keys mirror the api.* configuration keys; the remaining fields are
// supplied by the daemon.
type Config struct {
	Port             int
	BearerAuthEnabled bool
	Keys             []string

	OwnWalletAddr string

	// AuctionWaitTime bounds how long /v1/models waits for the compiled
	// model list after publishing list-models.
	AuctionWaitTime time.Duration

	// MeshWaitTimeout bounds waitForMesh before a request is failed.
	MeshWaitTimeout time.Duration

	// OuterDeadline bounds the whole await chain (quote-selected then
	// inference-response) for a single /v1/chat/completions call.
	OuterDeadline time.Duration
}

func (c Config) withDefaults() Config {
	if c.AuctionWaitTime <= 0 {
		c.AuctionWaitTime = 5 * time.Second
	}
	if c.MeshWaitTimeout <= 0 {
		c.MeshWaitTimeout = 5 * time.Second
	}
	if c.OuterDeadline <= 0 {
		c.OuterDeadline = 30 * time.Second
	}
	return c
}

// Facade owns the HTTP server and its collaborators.
type Facade struct {
	cfg Config

	peers      Peers
	broadcast  Broadcaster
	router     DirectRouter
	rendezvous RendezvousWaiter
	sessions   Sessions
	accum      ModelAccumulator
	signer     Signer

	srv   *http.Server
	ready atomic.Bool

	// modelsMu serializes /v1/models rounds: the rendezvous key they wait
	// on (model.ModelListCompiledKey) is not parameterized by a request
	// id, so two rounds in flight at once would cross-deliver.
	modelsMu sync.Mutex
}

// New builds a Facade. Call MarkReady once the peer network (C2) has
// completed Start, and Serve to begin accepting connections.
func New(
	cfg Config,
	peers Peers,
	broadcast Broadcaster,
	r DirectRouter,
	rendezvousBus RendezvousWaiter,
	sessions Sessions,
	accum ModelAccumulator,
	signer Signer,
) *Facade {
	f := &Facade{
		cfg:        cfg.withDefaults(),
		peers:      peers,
		broadcast:  broadcast,
		router:     r,
		rendezvous: rendezvousBus,
		sessions:   sessions,
		accum:      accum,
		signer:     signer,
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", f.handleHealth).Methods(http.MethodGet)

	protected := router.NewRoute().Subrouter()
	protected.Use(f.authMiddleware)
	protected.HandleFunc("/peers", f.handlePeers).Methods(http.MethodGet)
	protected.HandleFunc("/v1/models", f.handleModels).Methods(http.MethodGet)
	protected.HandleFunc("/v1/chat/completions", f.handleChatCompletions).Methods(http.MethodPost)

	f.srv = &http.Server{Addr: portAddr(cfg.Port), Handler: router}
	return f
}

// MarkReady flips /health to report OK; called once the peer network has
// finished starting.
func (f *Facade) MarkReady() {
	f.ready.Store(true)
}

// Serve blocks accepting connections until Stop is called.
func (f *Facade) Serve() error {
	log.Infof("request façade listening on %s", f.srv.Addr)
	err := f.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the HTTP server down, the first of the four
// ordered shutdown steps the daemon runs.
func (f *Facade) Stop(ctx context.Context) error {
	return f.srv.Shutdown(ctx)
}

func portAddr(port int) string {
	if port <= 0 {
		port = 8080
	}
	return ":" + strconv.Itoa(port)
}
