package ledger

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/base32"
	"fmt"
)

// Algorand addresses are the 32-byte public key followed by a 4-byte
// SHA-512/256 checksum, base32-encoded without padding. checksumLen and
// the encoding match the public Algorand address format; reproduced here
// as a self-contained primitive rather than an SDK dependency (see
// DESIGN.md).
const (
	addressLen  = 58
	checksumLen = 4
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// EncodeAddress renders pub as a ledger address.
func EncodeAddress(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("encode address: bad public key length %d", len(pub))
	}

	sum := sha512.Sum512_256(pub)
	checksum := sum[len(sum)-checksumLen:]

	payload := make([]byte, 0, len(pub)+checksumLen)
	payload = append(payload, pub...)
	payload = append(payload, checksum...)

	return b32.EncodeToString(payload), nil
}

// DecodeAddress recovers the public key embedded in addr, verifying its
// checksum.
func DecodeAddress(addr string) (ed25519.PublicKey, error) {
	payload, err := b32.DecodeString(addr)
	if err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	if len(payload) != ed25519.PublicKeySize+checksumLen {
		return nil, fmt.Errorf("decode address: unexpected length %d", len(payload))
	}

	pub := payload[:ed25519.PublicKeySize]
	wantChecksum := payload[ed25519.PublicKeySize:]

	sum := sha512.Sum512_256(pub)
	gotChecksum := sum[len(sum)-checksumLen:]

	for i := range wantChecksum {
		if wantChecksum[i] != gotChecksum[i] {
			return nil, fmt.Errorf("decode address: checksum mismatch")
		}
	}

	return ed25519.PublicKey(pub), nil
}

// IsValidAddress reports whether addr decodes to a well-formed ledger
// address. Implements the Client.IsValidAddress contract independent of
// any particular Client implementation.
func IsValidAddress(addr string) bool {
	if len(addr) != addressLen {
		return false
	}
	_, err := DecodeAddress(addr)
	return err == nil
}
