// Package wireproto defines the message envelope shared by every transport
// (pub/sub broadcast and the direct protocol), its binary wire packing, and
// the canonical-JSON signing/verification scheme used to authenticate it.
package wireproto

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Role is the closed set of message discriminators exchanged between
// nodes.
type Role string

const (
	RoleListModels         Role = "list-models"
	RoleListModelsResponse Role = "list-models-response"
	RoleQuoteRequest       Role = "quote-request"
	RoleQuoteResponse      Role = "quote-response"
	RoleQuoteAccepted      Role = "quote-accepted"
	RoleContractCreated    Role = "contract-created"
	RoleContractSigned     Role = "contract-signed"
	RoleInferenceResponse  Role = "inference-response"
)

// validRoles backs Role.Valid, kept as a set literal rather than a loop
// over an enumerated slice.
var validRoles = map[Role]struct{}{
	RoleListModels:         {},
	RoleListModelsResponse: {},
	RoleQuoteRequest:       {},
	RoleQuoteResponse:      {},
	RoleQuoteAccepted:      {},
	RoleContractCreated:    {},
	RoleContractSigned:     {},
	RoleInferenceResponse:  {},
}

// Valid reports whether r is one of the closed set of roles.
func (r Role) Valid() bool {
	_, ok := validRoles[r]
	return ok
}

// BroadcastOnly reports whether r belongs to the broadcast-only delivery
// class: these roles only ever travel over the gossip topic.
func (r Role) BroadcastOnly() bool {
	switch r {
	case RoleListModels, RoleListModelsResponse, RoleQuoteRequest, RoleQuoteResponse:
		return true
	default:
		return false
	}
}

// DirectPreferred reports whether r belongs to the direct-preferred
// delivery class: the router tries a direct stream to the named peer
// before falling back to broadcast.
func (r Role) DirectPreferred() bool {
	switch r {
	case RoleQuoteAccepted, RoleContractCreated, RoleContractSigned, RoleInferenceResponse:
		return true
	default:
		return false
	}
}

// Envelope is the shared message shape carried over both transports.
// Payload is role-specific and deliberately untyped here; processor
// handlers type-assert the fields they need per role.
type Envelope struct {
	Role           Role                   `msgpack:"role" json:"role"`
	ID             string                 `msgpack:"id" json:"id"`
	Timestamp      int64                  `msgpack:"timestamp" json:"timestamp"`
	FromWalletAddr string                 `msgpack:"fromWalletAddr" json:"fromWalletAddr"`
	To             string                 `msgpack:"to,omitempty" json:"to,omitempty"`
	Payload        map[string]interface{} `msgpack:"payload,omitempty" json:"payload,omitempty"`
	Signature      string                 `msgpack:"signature,omitempty" json:"signature,omitempty"`
}

// Pack binary-packs the envelope for wire transmission (direct stream
// frames and pub/sub publications share this encoding).
func Pack(e *Envelope) ([]byte, error) {
	b, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("pack envelope: %w", err)
	}
	return b, nil
}

// Unpack decodes a binary-packed envelope produced by Pack.
func Unpack(b []byte) (*Envelope, error) {
	var e Envelope
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("unpack envelope: %w", err)
	}
	return &e, nil
}

// withoutSignature returns a shallow copy of e with Signature cleared, for
// use as the signing/verification input.
func (e *Envelope) withoutSignature() *Envelope {
	cp := *e
	cp.Signature = ""
	return &cp
}

// SigningBytes returns the canonical-JSON encoding of the envelope with
// `signature` removed, sorted keys at every depth: the exact bytes that
// must be signed on egress and re-derived for verification on ingress.
func (e *Envelope) SigningBytes() ([]byte, error) {
	stripped := e.withoutSignature()

	// Round-trip through encoding/json into a generic value so Canonicalize
	// can walk it uniformly regardless of the concrete Go field types.
	raw, err := json.Marshal(stripped)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope for signing: %w", err)
	}

	generic, err := DecodeGeneric(raw)
	if err != nil {
		return nil, fmt.Errorf("decode envelope for canonicalization: %w", err)
	}

	return Canonicalize(generic)
}
