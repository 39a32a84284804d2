package keys

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/pkg/errors"
)

// AlgEdDSA is the protected-header algorithm for Ed25519 signatures.
const AlgEdDSA = "EdDSA"

// Ed25519Signer signs commit envelopes as a did:key controller.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	did  string
}

// NewEd25519Signer returns a signer for the key derived from seed.
func NewEd25519Signer(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	did, err := DIDFromPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Ed25519Signer{priv: priv, did: did}, nil
}

func (s *Ed25519Signer) DID() string { return s.did }

func (s *Ed25519Signer) KeyID() string { return KeyIDFromDID(s.did) }

func (s *Ed25519Signer) Algorithm() string { return AlgEdDSA }

func (s *Ed25519Signer) Sign(ctx context.Context, message []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ed25519.Sign(s.priv, message), nil
}

// Verifier checks EdDSA signatures for did:key verification methods. The
// zero value is ready to use.
type Verifier struct{}

func (Verifier) Verify(ctx context.Context, kid, alg string, message, signature []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if alg != AlgEdDSA {
		return fmt.Errorf("unsupported signature algorithm %q", alg)
	}
	pub, err := PublicKeyFromDID(kid)
	if err != nil {
		return errors.Wrap(err, "resolve verification method")
	}
	if !ed25519.Verify(pub, message, signature) {
		return errors.New("signature does not verify")
	}
	return nil
}
