package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

const deriveInfo = "xdao-streams-kms-lite-v1"

// DIDFromSeed returns the did:key controller for an Ed25519 seed.
func DIDFromSeed(seed []byte) (string, error) {
	if len(seed) != ed25519.SeedSize {
		return "", fmt.Errorf("seed must be %d bytes", ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return DIDFromPublicKey(priv.Public().(ed25519.PublicKey))
}

// DeriveRoleSeed deterministically derives a role-specific Ed25519 seed from
// a root seed with HKDF-SHA256.
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := ValidateRole(role); err != nil {
		return nil, err
	}
	r := hkdf.New(sha256.New, rootSeed, []byte("role:"+role), []byte(deriveInfo))
	out := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, errors.Wrap(err, "derive role seed")
	}
	return out, nil
}
