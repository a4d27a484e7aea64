// Package session tracks the two-role state machine that spans a single
// session id across a quote negotiation, contract funding, inference, and
// payment. It does not decode or send messages itself: C7's handlers
// advance a session through Transition and read back whether the move was
// legal.
package session

import (
	"sync"

	"github.com/Diiisco-Inc/diiisco-node/internal/logctx"
)

var log = logctx.Logger(logctx.SubsystemSession)

// Role distinguishes which side of the negotiation a session id belongs
// to for this node. A node can be a customer for one session id and a
// provider for a different one, but never both for the same id.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
)

// State is a state in either role's machine.
type State string

const (
	StateDiscovering       State = "DISCOVERING"
	StateQuoted            State = "QUOTED"
	StateAccepted          State = "ACCEPTED"
	StateContractSignedSent State = "CONTRACT_SIGNED_SENT"
	StatePaid              State = "PAID"

	StateQuoteOffered       State = "QUOTE_OFFERED"
	StateContractCreatedSent State = "CONTRACT_CREATED_SENT"
	StateInferring          State = "INFERRING"
	StateResponded          State = "RESPONDED"
)

// customerTransitions and providerTransitions enumerate the single legal
// next state for each current state; anything else is rejected.
var customerTransitions = map[State]State{
	StateDiscovering:        StateQuoted,
	StateQuoted:             StateAccepted,
	StateAccepted:           StateContractSignedSent,
	StateContractSignedSent: StatePaid,
}

var providerTransitions = map[State]State{
	StateQuoteOffered:        StateContractCreatedSent,
	StateContractCreatedSent: StateInferring,
	StateInferring:           StateResponded,
}

type entry struct {
	role  Role
	state State
}

// Table tracks one in-flight session per id. A single in-flight session
// per id is enforced: Begin fails if id is already tracked under any
// role, and duplicate same-id-same-role starts are silently dropped by
// the caller checking Begin's ok return.
type Table struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

// New builds an empty Table.
func New() *Table {
	return &Table{sessions: make(map[string]*entry)}
}

// Begin starts tracking id under role at its initial state. Returns false
// if id is already tracked (in either role): the caller must silently
// drop the duplicate rather than erroring.
func (t *Table) Begin(id string, role Role) (started bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.sessions[id]; exists {
		return false
	}

	initial := StateDiscovering
	if role == RoleProvider {
		initial = StateQuoteOffered
	}
	t.sessions[id] = &entry{role: role, state: initial}
	return true
}

// Transition moves id to next if next is the legal successor of its
// current state for its role. Returns false (and drops the session) on
// any illegal transition, matching §4.9's "terminal errors drop the
// session" rule when the caller treats a false return as terminal.
func (t *Table) Transition(id string, next State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.sessions[id]
	if !ok {
		return false
	}

	table := customerTransitions
	if e.role == RoleProvider {
		table = providerTransitions
	}

	want, ok := table[e.state]
	if !ok || want != next {
		log.Warnf("illegal transition for session %s: %s -> %s", id, e.state, next)
		delete(t.sessions, id)
		return false
	}

	e.state = next
	if next == StatePaid || next == StateResponded {
		delete(t.sessions, id)
	}
	return true
}

// Drop removes id unconditionally, used when a handler aborts a session
// on a business-rule rejection (e.g. Underfunded) rather than a bad
// transition.
func (t *Table) Drop(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

// Lookup returns id's current role and state.
func (t *Table) Lookup(id string) (Role, State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.sessions[id]
	if !ok {
		return "", "", false
	}
	return e.role, e.state, true
}
