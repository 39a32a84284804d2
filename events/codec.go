package events

import (
	"encoding/json"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/pkg/errors"

	"xdao.co/streams/errs"
)

// linkTag is the CBOR tag for content-addressed links.
const linkTag = 42

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Length-first key ordering, shortest-form integers, no indefinite lengths.
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyEnforcedAPF,
		IndefLength:    cbor.IndefLengthForbidden,
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// link is a CID encoded as CBOR tag 42 over a 0x00-prefixed binary CID.
type link struct {
	cid.Cid
}

func (l link) MarshalCBOR() ([]byte, error) {
	if !l.Defined() {
		return nil, errs.New(errs.KindEncoding, "cannot encode undefined link")
	}
	return encMode.Marshal(cbor.Tag{Number: linkTag, Content: append([]byte{0}, l.Bytes()...)})
}

func (l *link) UnmarshalCBOR(b []byte) error {
	var tag cbor.RawTag
	if err := decMode.Unmarshal(b, &tag); err != nil {
		return errs.Wrap(errs.KindEncoding, "invalid link", err)
	}
	if tag.Number != linkTag {
		return errs.Newf(errs.KindEncoding, "invalid link: unexpected tag %d", tag.Number)
	}
	var raw []byte
	if err := decMode.Unmarshal(tag.Content, &raw); err != nil {
		return errs.Wrap(errs.KindEncoding, "invalid link", err)
	}
	if len(raw) < 2 || raw[0] != 0 {
		return errs.New(errs.KindEncoding, "invalid link: missing multibase identity prefix")
	}
	c, err := cid.Cast(raw[1:])
	if err != nil {
		return errs.Wrap(errs.KindEncoding, "invalid link", err)
	}
	l.Cid = c
	return nil
}

// toCBORValue prepares generic JSON content for canonical encoding:
// integral numbers are encoded as CBOR integers rather than floats.
func toCBORValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = toCBORValue(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = toCBORValue(e)
		}
		return out
	case float64:
		if val == math.Trunc(val) && math.Abs(val) <= 1<<53 {
			return int64(val)
		}
		return val
	default:
		return v
	}
}

// fromCBORValue converts decoded CBOR into the generic JSON shape used for
// content (float64 numbers, string-keyed maps).
func fromCBORValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "decoded value is not JSON compatible")
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errors.Wrap(err, "decoded value is not JSON compatible")
	}
	return out, nil
}

func marshal(v any) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "encode payload", err)
	}
	return b, nil
}
