package events

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/streams/cidutil"
	"xdao.co/streams/errs"
)

// Signer produces detached signatures over signing inputs.
type Signer interface {
	// DID is the issuer identifier placed in the init header controllers.
	DID() string
	// KeyID is the verification method reference carried as the protected kid.
	KeyID() string
	Algorithm() string
	Sign(ctx context.Context, message []byte) ([]byte, error)
}

// Verifier checks a signature against the key named by kid.
type Verifier interface {
	Verify(ctx context.Context, kid, alg string, message, signature []byte) error
}

// Signature is one entry of a signed envelope.
type Signature struct {
	Protected []byte `cbor:"protected"`
	Signature []byte `cbor:"signature"`
}

// SignedEnvelope wraps a canonical payload block with its signatures.
type SignedEnvelope struct {
	Payload    []byte      `cbor:"payload"`
	Signatures []Signature `cbor:"signatures"`
	Capability []byte      `cbor:"capability,omitempty"`
}

type protectedHeader struct {
	Alg string `json:"alg"`
	Cap string `json:"cap,omitempty"`
	Kid string `json:"kid"`
}

// Encode returns the canonical block for the envelope.
func (e *SignedEnvelope) Encode() ([]byte, error) {
	return marshal(e)
}

// PayloadCID is the link the signatures commit to.
func (e *SignedEnvelope) PayloadCID() (cid.Cid, error) {
	return cidutil.DagCBORSHA256(e.Payload)
}

// CID is the commit CID of the envelope.
func (e *SignedEnvelope) CID() (cid.Cid, error) {
	b, err := e.Encode()
	if err != nil {
		return cid.Undef, err
	}
	return cidutil.DagCBORSHA256(b)
}

// Sign encodes payload and signs it with signer.
func Sign(ctx context.Context, signer Signer, payload Payload) (*SignedEnvelope, error) {
	return SignWithCapability(ctx, signer, payload, nil)
}

// SignWithCapability is Sign with a delegated capability reference attached.
func SignWithCapability(ctx context.Context, signer Signer, payload Payload, capability []byte) (*SignedEnvelope, error) {
	if signer == nil {
		return nil, errs.New(errs.KindVerification, "no signer")
	}
	body, err := payload.Encode()
	if err != nil {
		return nil, err
	}
	env := &SignedEnvelope{Payload: body}
	ph := protectedHeader{Alg: signer.Algorithm(), Kid: signer.KeyID()}
	if len(capability) > 0 {
		env.Capability = capability
		c, err := cidutil.DagCBORSHA256(capability)
		if err != nil {
			return nil, errs.Wrap(errs.KindEncoding, "capability", err)
		}
		ph.Cap = "ipfs://" + c.String()
	}
	protected, err := json.Marshal(ph)
	if err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "protected header", err)
	}
	input, err := signingInput(env, protected)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(ctx, input)
	if err != nil {
		return nil, errs.Wrap(errs.KindVerification, "sign", err)
	}
	env.Signatures = []Signature{{Protected: protected, Signature: sig}}
	return env, nil
}

// Verify checks the envelope signature and returns the signer DID.
func (e *SignedEnvelope) Verify(ctx context.Context, v Verifier) (string, error) {
	if v == nil {
		return "", errs.New(errs.KindVerification, "no verifier configured for signed events")
	}
	if len(e.Signatures) != 1 {
		return "", errs.Newf(errs.KindVerification, "expected exactly one signature, got %d", len(e.Signatures))
	}
	sig := e.Signatures[0]
	var ph protectedHeader
	if err := json.Unmarshal(sig.Protected, &ph); err != nil {
		return "", errs.Wrap(errs.KindVerification, "invalid protected header", err)
	}
	if ph.Kid == "" {
		return "", errs.New(errs.KindVerification, "protected header is missing kid")
	}
	if err := e.checkCapability(ph.Cap); err != nil {
		return "", err
	}
	input, err := signingInput(e, sig.Protected)
	if err != nil {
		return "", err
	}
	if err := v.Verify(ctx, ph.Kid, ph.Alg, input, sig.Signature); err != nil {
		return "", errs.Wrap(errs.KindVerification, "invalid signature", err).With("kid", ph.Kid)
	}
	did, _, _ := strings.Cut(ph.Kid, "#")
	return did, nil
}

// checkCapability binds the attached capability block to the cap link the
// signer committed to. Either both are present and agree or neither is.
func (e *SignedEnvelope) checkCapability(link string) error {
	if link == "" && len(e.Capability) == 0 {
		return nil
	}
	if link == "" {
		return errs.New(errs.KindVerification, "capability block is not referenced by the protected header")
	}
	if len(e.Capability) == 0 {
		return errs.New(errs.KindVerification, "protected header references a capability that is not attached").With("cap", link)
	}
	c, err := cidutil.DagCBORSHA256(e.Capability)
	if err != nil {
		return errs.Wrap(errs.KindVerification, "capability", err)
	}
	if want := "ipfs://" + c.String(); link != want {
		return errs.Newf(errs.KindVerification, "capability block %s does not match signed reference", c).
			With("cap", link).
			With("actual", want)
	}
	return nil
}

func signingInput(e *SignedEnvelope, protected []byte) ([]byte, error) {
	pc, err := e.PayloadCID()
	if err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "payload link", err)
	}
	enc := base64.RawURLEncoding
	return []byte(enc.EncodeToString(protected) + "." + enc.EncodeToString(pc.Bytes())), nil
}

// DecodeEnvelope decodes a signed envelope block.
func DecodeEnvelope(b []byte) (*SignedEnvelope, error) {
	var e SignedEnvelope
	if err := decMode.Unmarshal(b, &e); err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "invalid signed envelope", err)
	}
	if len(e.Payload) == 0 {
		return nil, errs.New(errs.KindEncoding, "invalid signed envelope: empty payload")
	}
	return &e, nil
}
