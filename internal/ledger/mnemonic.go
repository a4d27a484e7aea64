package ledger

import (
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"

	"github.com/tyler-smith/go-bip39"
)

// AccountFromMnemonic derives the node's ledger Account from its
// configured recovery phrase, the same phrase a deployment operator would
// paste into the config once and never type again.
func AccountFromMnemonic(mnemonic string) (*Account, error) {
	if _, err := bip39.MnemonicToByteArray(mnemonic, true); err != nil {
		return nil, fmt.Errorf("parse mnemonic: %w", err)
	}

	seed := bip39.NewSeed(mnemonic, "")
	sum := sha512.Sum512(seed)
	priv := ed25519.NewKeyFromSeed(sum[:ed25519.SeedSize])

	return NewAccount(priv)
}
