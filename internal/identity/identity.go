// Package identity loads or creates the node's stable libp2p keypair from
// a local file, atomically, with no silent regeneration on a corrupt
// file.
package identity

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	crypto "github.com/libp2p/go-libp2p/core/crypto"

	"github.com/Diiisco-Inc/diiisco-node/internal/logctx"
)

var log = logctx.Logger(logctx.SubsystemIdentity)

// ErrIdentityCorrupt is returned when the identity file exists but cannot
// be parsed. The caller must treat this as fatal: the node never silently
// regenerates an identity out from under an operator.
type ErrIdentityCorrupt struct {
	Path string
	Err  error
}

func (e *ErrIdentityCorrupt) Error() string {
	return fmt.Sprintf("identity file %s is corrupt: %v", e.Path, e.Err)
}

func (e *ErrIdentityCorrupt) Unwrap() error {
	return e.Err
}

// LoadOrCreate returns the keypair stored at path, generating and
// persisting a fresh Ed25519 one if the file doesn't exist yet.
func LoadOrCreate(path string) (crypto.PrivKey, error) {
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		priv, perr := crypto.UnmarshalPrivateKey(raw)
		if perr != nil {
			return nil, &ErrIdentityCorrupt{Path: path, Err: perr}
		}
		log.Infof("loaded node identity from %s", path)
		return priv, nil

	case os.IsNotExist(err):
		return generateAndPersist(path)

	default:
		return nil, fmt.Errorf("read identity file %s: %w", path, err)
	}
}

func generateAndPersist(path string) (crypto.PrivKey, error) {
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate node identity: %w", err)
	}

	raw, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal node identity: %w", err)
	}

	if err := writeAtomic(path, raw); err != nil {
		return nil, err
	}

	log.Infof("generated new node identity at %s", path)
	return priv, nil
}

// writeAtomic writes data to path via a temp file in the same directory
// followed by a rename, so a crash mid-write never leaves a truncated
// identity file behind.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create identity dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".identity-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp identity file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp identity file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp identity file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp identity file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp identity file into place: %w", err)
	}
	return nil
}
