package wireproto

import "fmt"

// Signer produces a base64 signature over arbitrary canonical bytes. The
// ledger collaborator implements this.
type Signer interface {
	SignObject(data []byte) (string, error)
}

// Verifier checks a base64 signature over canonical bytes against a
// wallet address acting as the verification key.
type Verifier interface {
	VerifySignature(addr string, data []byte, signatureB64 string) (bool, error)
}

// Sign computes the canonical signing bytes for e and attaches the
// resulting base64 signature. Re-signing the same envelope twice (stable
// fields) yields the same signature.
func Sign(e *Envelope, signer Signer) error {
	data, err := e.SigningBytes()
	if err != nil {
		return fmt.Errorf("compute signing bytes: %w", err)
	}

	sig, err := signer.SignObject(data)
	if err != nil {
		return fmt.Errorf("sign envelope: %w", err)
	}

	e.Signature = sig
	return nil
}

// Verify recomputes the canonical signing bytes for e and checks the
// attached signature against FromWalletAddr as the verification key.
func Verify(e *Envelope, verifier Verifier) (bool, error) {
	if e.Signature == "" {
		return false, nil
	}

	data, err := e.SigningBytes()
	if err != nil {
		return false, fmt.Errorf("compute signing bytes: %w", err)
	}

	return verifier.VerifySignature(e.FromWalletAddr, data, e.Signature)
}
