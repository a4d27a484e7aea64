// Package ledger defines the Algorand-shaped ledger collaborator consumed
// by the core. The core never composes its own transactions; it only
// issues the atomic calls enumerated here and reads back their results.
package ledger

import "context"

// FundedStatus is the result of verifyQuoteFunded.
type FundedStatus struct {
	Funded        bool
	Status        string
	USDCBaseUnits int64
}

// OptInStatus is the result of checkIfOptedInToAsset.
type OptInStatus struct {
	OptedIn bool
	Balance int64
}

// Confirmation is the result of completeQuote settling payment on-chain.
type Confirmation struct {
	TxID  string
	Round uint64
}

// Client is the full surface the core issues calls against. Every
// implementation must be safe for concurrent use; callers never need
// their own locking around it.
type Client interface {
	// CreateQuote creates an on-chain escrow slot for the session.
	CreateQuote(ctx context.Context, quoteID, customerAddr string, usdcBaseUnits int64) error

	// FundQuote transfers escrow from the customer for quoteID.
	FundQuote(ctx context.Context, quoteID string, usdcBaseUnits int64) error

	// VerifyQuoteFunded reports the current funded state of quoteID.
	VerifyQuoteFunded(ctx context.Context, quoteID string) (FundedStatus, error)

	// CompleteQuote settles payment to provider for quoteID.
	CompleteQuote(ctx context.Context, quoteID, provider string) (Confirmation, error)

	// RefundQuote aborts quoteID and refunds the customer. Exposed but
	// never invoked automatically by the core; the on-chain contract owns
	// its own refund path.
	RefundQuote(ctx context.Context, quoteID string) error

	// CheckIfOptedInToAsset reports whether addr is opted in to assetID,
	// and its balance of that asset.
	CheckIfOptedInToAsset(ctx context.Context, addr string, assetID uint64) (OptInStatus, error)

	// OptInToAsset opts addr in to assetID.
	OptInToAsset(ctx context.Context, addr string, assetID uint64) error

	// IsValidAddress reports whether addr is a well-formed ledger address.
	IsValidAddress(addr string) bool

	// ResolveBootstrapAlias resolves a DNS-like bootstrap alias to a full
	// multiaddr via the registry, or returns ok=false if addr isn't an
	// alias (i.e. the caller should use it as-is).
	ResolveBootstrapAlias(ctx context.Context, alias string) (multiaddr string, ok bool, err error)

	// SignObject and VerifySignature implement wireproto.Signer and
	// wireproto.Verifier against the node's own ledger account key.
	SignObject(data []byte) (string, error)
	VerifySignature(addr string, data []byte, signatureB64 string) (bool, error)
}

// Error wraps a failure from a Client implementation with the operation
// that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "ledger: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
