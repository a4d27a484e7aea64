package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Diiisco-Inc/diiisco-node/internal/logctx"
)

var log = logctx.Logger(logctx.SubsystemLedger)

// quoteSlot tracks one escrow slot created by CreateQuote.
type quoteSlot struct {
	customerAddr  string
	fundedUnits   int64
	totalUnits    int64
	completed     bool
	refunded      bool
}

// SimClient is a local, in-memory stand-in for the Algorand ledger used in
// tests and single-binary demos. It implements the full Client contract
// so the rest of the core never branches on which ledger backend is
// wired; a production deployment instead configures AlgodClient via
// config (see internal/config).
type SimClient struct {
	*Account

	mu          sync.Mutex
	quotes      map[string]*quoteSlot
	optedIn     map[string]map[uint64]struct{}
	balances    map[string]map[uint64]int64
	bootstraps  map[string]string
}

// NewSimClient creates a simulator client with a fresh random account.
func NewSimClient() (*SimClient, error) {
	acct, err := GenerateAccount()
	if err != nil {
		return nil, err
	}
	return &SimClient{
		Account:    acct,
		quotes:     make(map[string]*quoteSlot),
		optedIn:    make(map[string]map[uint64]struct{}),
		balances:   make(map[string]map[uint64]int64),
		bootstraps: make(map[string]string),
	}, nil
}

// SetBalance seeds addr's balance of assetID and marks it opted in, for
// test setup and the highest-stake selection policy to have something
// meaningful to compare.
func (c *SimClient) SetBalance(addr string, assetID uint64, balance int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optedIn[addr] == nil {
		c.optedIn[addr] = make(map[uint64]struct{})
	}
	c.optedIn[addr][assetID] = struct{}{}

	if c.balances[addr] == nil {
		c.balances[addr] = make(map[uint64]int64)
	}
	c.balances[addr][assetID] = balance
}

// RegisterBootstrapAlias wires a DNS-like alias to a full multiaddr, the
// way an on-chain bootstrap registry would.
func (c *SimClient) RegisterBootstrapAlias(alias, multiaddr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bootstraps[alias] = multiaddr
}

func (c *SimClient) CreateQuote(_ context.Context, quoteID, customerAddr string, usdcBaseUnits int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.quotes[quoteID]; exists {
		return &Error{Op: "CreateQuote", Err: fmt.Errorf("quote %s already exists", quoteID)}
	}
	c.quotes[quoteID] = &quoteSlot{customerAddr: customerAddr, totalUnits: usdcBaseUnits}
	log.Debugf("CreateQuote(%s, %s, %d)", quoteID, customerAddr, usdcBaseUnits)
	return nil
}

func (c *SimClient) FundQuote(_ context.Context, quoteID string, usdcBaseUnits int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot, ok := c.quotes[quoteID]
	if !ok {
		return &Error{Op: "FundQuote", Err: fmt.Errorf("unknown quote %s", quoteID)}
	}
	slot.fundedUnits += usdcBaseUnits
	log.Debugf("FundQuote(%s, %d) -> funded=%d", quoteID, usdcBaseUnits, slot.fundedUnits)
	return nil
}

func (c *SimClient) VerifyQuoteFunded(_ context.Context, quoteID string) (FundedStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot, ok := c.quotes[quoteID]
	if !ok {
		return FundedStatus{}, &Error{Op: "VerifyQuoteFunded", Err: fmt.Errorf("unknown quote %s", quoteID)}
	}

	status := "pending"
	funded := slot.fundedUnits >= slot.totalUnits
	if funded {
		status = "funded"
	}

	return FundedStatus{
		Funded:        funded,
		Status:        status,
		USDCBaseUnits: slot.fundedUnits,
	}, nil
}

func (c *SimClient) CompleteQuote(_ context.Context, quoteID, _ string) (Confirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot, ok := c.quotes[quoteID]
	if !ok {
		return Confirmation{}, &Error{Op: "CompleteQuote", Err: fmt.Errorf("unknown quote %s", quoteID)}
	}
	slot.completed = true
	return Confirmation{TxID: "sim-" + quoteID, Round: 1}, nil
}

func (c *SimClient) RefundQuote(_ context.Context, quoteID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot, ok := c.quotes[quoteID]
	if !ok {
		return &Error{Op: "RefundQuote", Err: fmt.Errorf("unknown quote %s", quoteID)}
	}
	slot.refunded = true
	return nil
}

func (c *SimClient) CheckIfOptedInToAsset(_ context.Context, addr string, assetID uint64) (OptInStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, optedIn := c.optedIn[addr][assetID]
	return OptInStatus{
		OptedIn: optedIn,
		Balance: c.balances[addr][assetID],
	}, nil
}

func (c *SimClient) OptInToAsset(_ context.Context, addr string, assetID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optedIn[addr] == nil {
		c.optedIn[addr] = make(map[uint64]struct{})
	}
	c.optedIn[addr][assetID] = struct{}{}
	return nil
}

// bootstrapAliasSuffix is the well-known suffix that marks a bootstrap
// entry as an alias to be resolved, rather than a literal multiaddr.
const bootstrapAliasSuffix = ".diiisco.network"

func (c *SimClient) ResolveBootstrapAlias(_ context.Context, alias string) (string, bool, error) {
	if !strings.HasSuffix(alias, bootstrapAliasSuffix) {
		return "", false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	addr, ok := c.bootstraps[alias]
	if !ok {
		return "", false, &Error{Op: "ResolveBootstrapAlias", Err: fmt.Errorf("unknown alias %s", alias)}
	}
	return addr, true, nil
}
