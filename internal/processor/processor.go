// Package processor implements the message-agnostic ingress pipeline: it
// validates addressing and signature, then dispatches by role to a
// handler that produces a signed reply via the router. It runs with no
// global lock, so handlers for distinct session ids make progress
// independently.
package processor

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/Diiisco-Inc/diiisco-node/internal/auction"
	"github.com/Diiisco-Inc/diiisco-node/internal/ledger"
	"github.com/Diiisco-Inc/diiisco-node/internal/logctx"
	"github.com/Diiisco-Inc/diiisco-node/internal/model"
	"github.com/Diiisco-Inc/diiisco-node/internal/rendezvous"
	"github.com/Diiisco-Inc/diiisco-node/internal/router"
	"github.com/Diiisco-Inc/diiisco-node/internal/session"
	"github.com/Diiisco-Inc/diiisco-node/internal/wireproto"
)

var log = logctx.Logger(logctx.SubsystemProcessor)

// SessionCompletePrefix is the rendezvous key prefix emitted once a
// customer's inference-response handler has settled payment.
const SessionCompletePrefix = "session-complete-"

// InferenceResponsePrefix is the rendezvous key prefix the façade waits
// on to read back a completion's text, published as soon as the inbound
// inference-response envelope passes its session-state gate (ahead of
// ledger settlement, which can take longer than an HTTP caller should
// wait).
const InferenceResponsePrefix = "inference-response-"

// Config parameterizes the processor. ProtocolAssetID is the asset id a
// quote-request's sender must be opted in to before it is answered.
type Config struct {
	ProtocolAssetID  uint64
	ChargePerMillion float64
	OwnWalletAddr    string
	ServedModels     map[string]bool
	PricingPipeline  []PricingFunc
}

// Processor wires the ingress pipeline to its collaborators.
type Processor struct {
	cfg Config

	ledger  ledger.Client
	model   model.Client
	router  *router.Router
	auction *auction.Engine
	sess    *session.Table
	accum   *model.Accumulator
	bus     *rendezvous.Bus

	selfPeerID peer.ID
}

// New builds a Processor.
func New(
	cfg Config,
	ledgerClient ledger.Client,
	modelClient model.Client,
	r *router.Router,
	auctionEngine *auction.Engine,
	sessions *session.Table,
	accumulator *model.Accumulator,
	bus *rendezvous.Bus,
	selfPeerID peer.ID,
) *Processor {
	if cfg.PricingPipeline == nil {
		cfg.PricingPipeline = flatRatePipeline(cfg.ChargePerMillion)
	}
	return &Processor{
		cfg:        cfg,
		ledger:     ledgerClient,
		model:      modelClient,
		router:     r,
		auction:    auctionEngine,
		sess:       sessions,
		accum:      accumulator,
		bus:        bus,
		selfPeerID: selfPeerID,
	}
}

// Process runs the full ingress pipeline for one envelope, short-
// circuiting on the first failure.
func (p *Processor) Process(ctx context.Context, env *wireproto.Envelope, sourcePeerID peer.ID) error {
	if env.To != "" && env.To != p.cfg.OwnWalletAddr {
		return nil
	}

	if !p.ledger.IsValidAddress(env.FromWalletAddr) {
		return &BadSender{Addr: env.FromWalletAddr}
	}

	if env.Signature == "" {
		return &Unsigned{}
	}

	ok, err := wireproto.Verify(env, p.ledger)
	if err != nil {
		return err
	}
	if !ok {
		return &BadSignature{}
	}

	switch env.Role {
	case wireproto.RoleListModels:
		return p.handleListModels(ctx, env, sourcePeerID)
	case wireproto.RoleListModelsResponse:
		return p.handleListModelsResponse(env)
	case wireproto.RoleQuoteRequest:
		return p.handleQuoteRequest(ctx, env, sourcePeerID)
	case wireproto.RoleQuoteResponse:
		return p.handleQuoteResponse(env, sourcePeerID)
	case wireproto.RoleQuoteAccepted:
		return p.handleQuoteAccepted(ctx, env, sourcePeerID)
	case wireproto.RoleContractCreated:
		return p.handleContractCreated(ctx, env, sourcePeerID)
	case wireproto.RoleContractSigned:
		return p.handleContractSigned(ctx, env, sourcePeerID)
	case wireproto.RoleInferenceResponse:
		return p.handleInferenceResponse(ctx, env, sourcePeerID)
	default:
		return &UnknownRole{Role: string(env.Role)}
	}
}

// reply builds, signs, and sends a fresh envelope of role in response to
// the session id/addressing of the triggering message.
func (p *Processor) reply(ctx context.Context, role wireproto.Role, to peer.ID, toAddr, sessionID string, payload map[string]interface{}) error {
	out := &wireproto.Envelope{
		Role:           role,
		ID:             sessionID,
		Timestamp:      time.Now().UnixMilli(),
		FromWalletAddr: p.cfg.OwnWalletAddr,
		To:             toAddr,
		Payload:        payload,
	}
	if err := wireproto.Sign(out, p.ledger); err != nil {
		return err
	}

	data, err := wireproto.Pack(out)
	if err != nil {
		return err
	}

	return p.router.Send(ctx, role, data, to)
}
