package keys

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"
	"github.com/pkg/errors"
)

const (
	// DIDKeyPrefix is the method prefix of did:key identifiers.
	DIDKeyPrefix = "did:key:"

	// ed25519PubCodec is the multicodec code for an Ed25519 public key.
	ed25519PubCodec = 0xed
)

// DIDFromPublicKey encodes an Ed25519 public key as a did:key identifier.
func DIDFromPublicKey(pub ed25519.PublicKey) (string, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return "", fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	b := append(varint.ToUvarint(ed25519PubCodec), pub...)
	s, err := multibase.Encode(multibase.Base58BTC, b)
	if err != nil {
		return "", errors.Wrap(err, "encode did:key")
	}
	return DIDKeyPrefix + s, nil
}

// KeyIDFromDID returns the verification method reference for a did:key,
// which repeats the method-specific identifier as the fragment.
func KeyIDFromDID(did string) string {
	return did + "#" + strings.TrimPrefix(did, DIDKeyPrefix)
}

// PublicKeyFromDID decodes the Ed25519 public key of a did:key identifier.
// A trailing fragment is ignored.
func PublicKeyFromDID(did string) (ed25519.PublicKey, error) {
	did, _, _ = strings.Cut(did, "#")
	id, ok := strings.CutPrefix(did, DIDKeyPrefix)
	if !ok {
		return nil, fmt.Errorf("not a did:key identifier: %q", did)
	}
	enc, b, err := multibase.Decode(id)
	if err != nil {
		return nil, errors.Wrapf(err, "decode did:key %q", did)
	}
	if enc != multibase.Base58BTC {
		return nil, fmt.Errorf("did:key %q is not base58btc encoded", did)
	}
	codec, n, err := varint.FromUvarint(b)
	if err != nil {
		return nil, errors.Wrapf(err, "decode did:key %q codec", did)
	}
	if codec != ed25519PubCodec {
		return nil, fmt.Errorf("did:key %q: unsupported key codec 0x%x", did, codec)
	}
	pub := b[n:]
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("did:key %q: ed25519 public key must be %d bytes, got %d", did, ed25519.PublicKeySize, len(pub))
	}
	return ed25519.PublicKey(pub), nil
}
