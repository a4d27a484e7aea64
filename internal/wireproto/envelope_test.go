package wireproto

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

// ed25519Signer/Verifier is a minimal stand-in for the ledger collaborator,
// used only to exercise the canonicalization + signature plumbing in this
// package without pulling in internal/ledger.
type ed25519Signer struct {
	priv ed25519.PrivateKey
}

func (s ed25519Signer) SignObject(data []byte) (string, error) {
	sig := ed25519.Sign(s.priv, data)
	return base64.StdEncoding.EncodeToString(sig), nil
}

type ed25519Verifier struct {
	pub ed25519.PublicKey
}

func (v ed25519Verifier) VerifySignature(addr string, data []byte, sigB64 string) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(v.pub, data, sig), nil
}

func newTestKeypair(t *testing.T) (ed25519Signer, ed25519Verifier) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return ed25519Signer{priv: priv}, ed25519Verifier{pub: pub}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer, verifier := newTestKeypair(t)

	env := &Envelope{
		Role:           RoleQuoteRequest,
		ID:             "session-1",
		Timestamp:      1700000000123,
		FromWalletAddr: "ADDR1",
		Payload: map[string]interface{}{
			"model":  "gpt-oss:20b",
			"inputs": []interface{}{map[string]interface{}{"role": "user", "content": "hi"}},
		},
	}

	require.NoError(t, Sign(env, signer))
	require.NotEmpty(t, env.Signature)

	ok, err := Verify(env, verifier)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyFailsOnTamper(t *testing.T) {
	signer, verifier := newTestKeypair(t)

	env := &Envelope{
		Role:           RoleQuoteResponse,
		ID:             "session-2",
		Timestamp:      1700000000123,
		FromWalletAddr: "ADDR2",
		Payload: map[string]interface{}{
			"quote": map[string]interface{}{"totalPrice": 10.0},
		},
	}
	require.NoError(t, Sign(env, signer))

	// Tamper the payload after signing, as scenario S5 describes.
	env.Payload["quote"].(map[string]interface{})["totalPrice"] = 5.0

	ok, err := Verify(env, verifier)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResigningIsStable(t *testing.T) {
	signer, _ := newTestKeypair(t)
	env := &Envelope{
		Role:           RoleListModels,
		ID:             "session-3",
		Timestamp:      42,
		FromWalletAddr: "ADDR3",
	}

	require.NoError(t, Sign(env, signer))
	first := env.Signature

	env.Signature = ""
	require.NoError(t, Sign(env, signer))
	require.Equal(t, first, env.Signature)
}

func TestCanonicalizeSortsKeysAtEveryDepth(t *testing.T) {
	a, err := DecodeGeneric([]byte(`{"b":1,"a":{"z":1,"y":2}}`))
	require.NoError(t, err)
	b, err := DecodeGeneric([]byte(`{"a":{"y":2,"z":1},"b":1}`))
	require.NoError(t, err)

	ca, err := Canonicalize(a)
	require.NoError(t, err)
	cb, err := Canonicalize(b)
	require.NoError(t, err)

	require.Equal(t, string(ca), string(cb))
	require.Equal(t, `{"a":{"y":2,"z":1},"b":1}`, string(ca))
}

func TestPackUnpackPreservesFields(t *testing.T) {
	env := &Envelope{
		Role:           RoleQuoteAccepted,
		ID:             "session-4",
		Timestamp:      99,
		FromWalletAddr: "ADDR4",
		To:             "peer-xyz",
		Payload: map[string]interface{}{
			"quote": map[string]interface{}{"model": "m"},
		},
		Signature: "sig==",
	}

	b, err := Pack(env)
	require.NoError(t, err)

	out, err := Unpack(b)
	require.NoError(t, err)
	require.Equal(t, env.Role, out.Role)
	require.Equal(t, env.ID, out.ID)
	require.Equal(t, env.To, out.To)
	require.Equal(t, env.Signature, out.Signature)
}
