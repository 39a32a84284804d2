// Package streamid implements the binary and string codecs for stream and
// commit identifiers.
//
// A StreamID is encoded as
//
//	varint(Codec) || varint(type) || genesis-CID bytes
//
// and rendered as the base36 multibase string of those bytes. A CommitID
// appends either a single 0x00 byte (the genesis commit) or the commit CID
// bytes. Encoded forms are computed once at construction; identifiers are
// immutable values and compare with ==.
package streamid

import (
	"encoding/json"

	"github.com/ipfs/go-cid"

	"xdao.co/streams/cidutil"
	"xdao.co/streams/errs"
)

// StreamID identifies a stream by type and genesis commit, without commit
// information.
type StreamID struct {
	typ     Type
	genesis cid.Cid
	raw     string
	str     string
}

// Undef is the zero StreamID.
var Undef = StreamID{}

// New constructs a StreamID from a registered type and the genesis CID.
func New(typ Type, genesis cid.Cid) (StreamID, error) {
	if !typ.Registered() {
		_, err := typ.Name()
		return Undef, err
	}
	if !genesis.Defined() {
		return Undef, errs.New(errs.KindEncoding, "StreamID constructor: cid required")
	}
	raw := encodeBytes(typ, genesis)
	return StreamID{typ: typ, genesis: genesis, raw: string(raw), str: encodeString(raw)}, nil
}

// NewFromName is New with the type given by its registered name.
func NewFromName(name string, genesis cid.Cid) (StreamID, error) {
	typ, err := TypeByName(name)
	if err != nil {
		return Undef, err
	}
	return New(typ, genesis)
}

// FromGenesis derives the StreamID of a stream whose genesis commit is the
// given canonical dag-cbor block.
func FromGenesis(typ Type, block []byte) (StreamID, error) {
	id, err := cidutil.DagCBORSHA256(block)
	if err != nil {
		return Undef, errs.Wrap(errs.KindEncoding, "hash genesis block", err)
	}
	return New(typ, id)
}

// FromBytes parses the binary form of a StreamID. Input that carries commit
// information is rejected.
func FromBytes(b []byte) (StreamID, error) {
	p, err := parseBytes(b, "StreamID")
	if err != nil {
		return Undef, err
	}
	if p.hasCommit {
		return Undef, errs.Newf(errs.KindEncoding, "Invalid StreamID bytes %s: contains commit", encodeString(b))
	}
	return New(p.typ, p.genesis)
}

// FromString parses the base36 (or URL) form of a StreamID. Input that
// carries commit information is rejected.
func FromString(s string) (StreamID, error) {
	p, err := parseString(s, "StreamID")
	if err != nil {
		return Undef, err
	}
	if p.hasCommit {
		return Undef, errs.Newf(errs.KindEncoding, "Invalid StreamID string %s: contains commit", s)
	}
	return New(p.typ, p.genesis)
}

// MustFromString is FromString for identifiers known to be valid.
func MustFromString(s string) StreamID {
	id, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Random returns a StreamID of the given type over a random genesis CID.
func Random(typ Type) StreamID {
	id, err := New(typ, cidutil.Random())
	if err != nil {
		panic(err)
	}
	return id
}

func (s StreamID) Type() Type { return s.typ }

// TypeName returns the registered name of the stream type.
func (s StreamID) TypeName() string {
	name, _ := s.typ.Name()
	return name
}

// CID returns the genesis commit CID.
func (s StreamID) CID() cid.Cid { return s.genesis }

// Defined reports whether s is a constructed identifier.
func (s StreamID) Defined() bool { return s.raw != "" }

// Bytes returns a copy of the binary form.
func (s StreamID) Bytes() []byte { return []byte(s.raw) }

func (s StreamID) String() string { return s.str }

// URL returns the URL form.
func (s StreamID) URL() string { return URLScheme + s.str }

// BaseID returns s itself. It exists for symmetry with CommitID.
func (s StreamID) BaseID() StreamID { return s }

// Equals reports whether both identifiers share type and genesis CID.
func (s StreamID) Equals(other StreamID) bool {
	return s.typ == other.typ && s.genesis.Equals(other.genesis)
}

func (s StreamID) MarshalText() ([]byte, error) {
	return []byte(s.str), nil
}

func (s *StreamID) UnmarshalText(b []byte) error {
	id, err := FromString(string(b))
	if err != nil {
		return err
	}
	*s = id
	return nil
}

func (s StreamID) MarshalJSON() ([]byte, error) {
	if !s.Defined() {
		return []byte("null"), nil
	}
	return json.Marshal(s.str)
}

func (s *StreamID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = Undef
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errs.Wrap(errs.KindEncoding, "invalid StreamID JSON", err)
	}
	return s.UnmarshalText([]byte(str))
}
