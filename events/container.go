// Package events decodes commit blocks into tagged containers and builds
// the payloads clients sign and submit.
//
// Classification happens once, in Decode: every container carries exactly
// one of the four commit kinds and downstream code switches on Kind.
package events

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"

	"xdao.co/streams/cidutil"
	"xdao.co/streams/errs"
	"xdao.co/streams/streamid"
)

// Kind identifies a commit variant.
type Kind int

const (
	KindDeterministicInit Kind = iota + 1
	KindSignedInit
	KindData
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindDeterministicInit:
		return "deterministic-init"
	case KindSignedInit:
		return "signed-init"
	case KindData:
		return "data"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// IsInit reports whether k is a genesis variant.
func (k Kind) IsInit() bool {
	return k == KindDeterministicInit || k == KindSignedInit
}

// Container is a decoded commit. Exactly one of Init, Data or Time is set,
// according to Kind.
type Container struct {
	Kind Kind
	// CID is the commit CID: the envelope CID for signed commits, the
	// payload CID otherwise.
	CID cid.Cid
	// Signer is the DID that signed the commit. Empty for unsigned commits.
	Signer     string
	Capability []byte

	Init *InitPayload
	Data *DataPayload
	Time *TimePayload
}

// StreamID returns the id of the stream the container belongs to.
func (c *Container) StreamID() (streamid.StreamID, error) {
	switch c.Kind {
	case KindDeterministicInit, KindSignedInit:
		return streamid.New(streamid.TypeModelInstanceDocument, c.CID)
	case KindData:
		return streamid.New(streamid.TypeModelInstanceDocument, c.Data.ID)
	case KindTime:
		return streamid.New(streamid.TypeModelInstanceDocument, c.Time.ID)
	default:
		return streamid.Undef, errs.Newf(errs.KindEncoding, "unknown commit kind %s", c.Kind)
	}
}

// Prev returns the previous commit for data and time commits.
func (c *Container) Prev() cid.Cid {
	switch c.Kind {
	case KindData:
		return c.Data.Prev
	case KindTime:
		return c.Time.Prev
	default:
		return cid.Undef
	}
}

type payloadShape int

const (
	shapeUnknown payloadShape = iota
	shapeInit
	shapeData
	shapeTime
)

func shapeOf(keys map[string]cbor.RawMessage) payloadShape {
	_, hasHeader := keys["header"]
	_, hasData := keys["data"]
	_, hasID := keys["id"]
	_, hasPrev := keys["prev"]
	_, hasProof := keys["proof"]
	switch {
	case hasProof && hasID && hasPrev:
		return shapeTime
	case hasID && hasPrev && hasData:
		return shapeData
	case hasHeader && !hasID:
		return shapeInit
	default:
		return shapeUnknown
	}
}

func isEnvelope(keys map[string]cbor.RawMessage) bool {
	_, p := keys["payload"]
	_, s := keys["signatures"]
	return p && s
}

// Decode classifies and decodes a commit block. Signed blocks are verified
// with v; unsigned blocks never consult it.
func Decode(ctx context.Context, v Verifier, block []byte) (*Container, error) {
	c, err := cidutil.DagCBORSHA256(block)
	if err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "commit cid", err)
	}
	var keys map[string]cbor.RawMessage
	if err := decMode.Unmarshal(block, &keys); err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "commit block is not a CBOR map", err)
	}
	if isEnvelope(keys) {
		return decodeSigned(ctx, v, c, block)
	}
	switch shapeOf(keys) {
	case shapeInit:
		p, err := decodeInit(block)
		if err != nil {
			return nil, err
		}
		return &Container{Kind: KindDeterministicInit, CID: c, Init: p}, nil
	case shapeTime:
		p, err := decodeTime(block)
		if err != nil {
			return nil, err
		}
		return &Container{Kind: KindTime, CID: c, Time: p}, nil
	case shapeData:
		return nil, errs.New(errs.KindEncoding, "data events must be signed")
	default:
		return nil, errs.New(errs.KindEncoding, "unrecognized commit payload")
	}
}

func decodeSigned(ctx context.Context, v Verifier, c cid.Cid, block []byte) (*Container, error) {
	env, err := DecodeEnvelope(block)
	if err != nil {
		return nil, err
	}
	var keys map[string]cbor.RawMessage
	if err := decMode.Unmarshal(env.Payload, &keys); err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "signed payload is not a CBOR map", err)
	}
	shape := shapeOf(keys)
	if shape == shapeTime {
		return nil, errs.New(errs.KindEncoding, "time events must not be signed")
	}
	if shape == shapeUnknown {
		return nil, errs.New(errs.KindEncoding, "unrecognized signed commit payload")
	}
	signer, err := env.Verify(ctx, v)
	if err != nil {
		return nil, err
	}
	out := &Container{CID: c, Signer: signer, Capability: env.Capability}
	switch shape {
	case shapeInit:
		p, err := decodeInit(env.Payload)
		if err != nil {
			return nil, err
		}
		if ctrl := p.Header.Controller(); ctrl != signer {
			return nil, errs.Newf(errs.KindVerification, "Signer %s does not match stream controller %s", signer, ctrl).
				With("signer", signer).
				With("controller", ctrl)
		}
		out.Kind, out.Init = KindSignedInit, p
	case shapeData:
		p, err := decodeData(env.Payload)
		if err != nil {
			return nil, err
		}
		out.Kind, out.Data = KindData, p
	}
	return out, nil
}
