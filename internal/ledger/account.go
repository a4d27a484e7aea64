package ledger

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Account holds the node's own ledger keypair and implements
// wireproto.Signer/Verifier. Both concrete Client implementations in this
// package embed an Account so SignObject/VerifySignature behave
// identically regardless of how the rest of the interface is backed.
type Account struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	addr string
}

// NewAccount derives an Account from an existing private key, e.g. one
// loaded from the node's configured mnemonic.
func NewAccount(priv ed25519.PrivateKey) (*Account, error) {
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("new account: unexpected public key type")
	}
	addr, err := EncodeAddress(pub)
	if err != nil {
		return nil, err
	}
	return &Account{priv: priv, pub: pub, addr: addr}, nil
}

// GenerateAccount creates a fresh random account, used by tests and by
// SimClient when no mnemonic is configured.
func GenerateAccount() (*Account, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate account: %w", err)
	}
	addr, err := EncodeAddress(pub)
	if err != nil {
		return nil, err
	}
	return &Account{priv: priv, pub: pub, addr: addr}, nil
}

// Address returns the account's ledger address.
func (a *Account) Address() string {
	return a.addr
}

// SignObject implements wireproto.Signer.
func (a *Account) SignObject(data []byte) (string, error) {
	sig := ed25519.Sign(a.priv, data)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifySignature implements wireproto.Verifier, verifying against the
// public key embedded in addr rather than the local account — any
// envelope may claim to be from any address, and the signature must
// check out against that claimed address's key.
func (a *Account) VerifySignature(addr string, data []byte, signatureB64 string) (bool, error) {
	pub, err := DecodeAddress(addr)
	if err != nil {
		return false, nil
	}

	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false, nil
	}

	return ed25519.Verify(pub, data, sig), nil
}

// IsValidAddress implements Client.IsValidAddress.
func (a *Account) IsValidAddress(addr string) bool {
	return IsValidAddress(addr)
}
