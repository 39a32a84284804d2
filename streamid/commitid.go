package streamid

import (
	"encoding/json"

	"github.com/ipfs/go-cid"

	"xdao.co/streams/errs"
)

// CommitID identifies one commit of a stream.
//
// An undefined commit CID denotes the genesis commit; Commit then reports
// the genesis CID.
type CommitID struct {
	stream StreamID
	commit cid.Cid
	raw    string
	str    string
}

// NewCommitID constructs a CommitID. Pass cid.Undef for the genesis commit.
func NewCommitID(typ Type, genesis, commit cid.Cid) (CommitID, error) {
	sid, err := New(typ, genesis)
	if err != nil {
		return CommitID{}, err
	}
	return FromStream(sid, commit), nil
}

// FromStream returns the CommitID of commit within stream. Pass cid.Undef
// for the genesis commit.
func FromStream(stream StreamID, commit cid.Cid) CommitID {
	raw := stream.Bytes()
	if commit.Defined() {
		raw = append(raw, commit.Bytes()...)
	} else {
		raw = append(raw, 0)
	}
	return CommitID{stream: stream, commit: commit, raw: string(raw), str: encodeString(raw)}
}

// CommitIDFromBytes parses the binary form of a CommitID. A plain StreamID
// is rejected.
func CommitIDFromBytes(b []byte) (CommitID, error) {
	p, err := parseBytes(b, "CommitID")
	if err != nil {
		return CommitID{}, err
	}
	if !p.hasCommit {
		return CommitID{}, errs.Newf(errs.KindEncoding, "Error while parsing CommitID from bytes %s: no commit information provided", encodeString(b))
	}
	return NewCommitID(p.typ, p.genesis, p.commit)
}

// CommitIDFromString parses the base36 (or URL) form of a CommitID. A plain
// StreamID is rejected.
func CommitIDFromString(s string) (CommitID, error) {
	p, err := parseString(s, "CommitID")
	if err != nil {
		return CommitID{}, err
	}
	if !p.hasCommit {
		return CommitID{}, errs.Newf(errs.KindEncoding, "Error while parsing CommitID from string %s: no commit information provided", s)
	}
	return NewCommitID(p.typ, p.genesis, p.commit)
}

// BaseID returns the StreamID portion, discarding the commit pointer.
func (c CommitID) BaseID() StreamID { return c.stream }

func (c CommitID) Type() Type { return c.stream.typ }

func (c CommitID) TypeName() string { return c.stream.TypeName() }

// CID returns the genesis CID.
func (c CommitID) CID() cid.Cid { return c.stream.genesis }

// Commit returns the commit CID, or the genesis CID for the genesis commit.
func (c CommitID) Commit() cid.Cid {
	if c.commit.Defined() {
		return c.commit
	}
	return c.stream.genesis
}

// IsGenesis reports whether c carries the genesis marker instead of an
// explicit commit CID.
func (c CommitID) IsGenesis() bool { return !c.commit.Defined() }

func (c CommitID) Defined() bool { return c.raw != "" }

func (c CommitID) Bytes() []byte { return []byte(c.raw) }

func (c CommitID) String() string { return c.str }

func (c CommitID) URL() string { return URLScheme + c.str }

// Equals reports whether both identifiers share stream and commit.
func (c CommitID) Equals(other CommitID) bool {
	return c.stream.Equals(other.stream) && c.commit.Equals(other.commit)
}

func (c CommitID) MarshalText() ([]byte, error) {
	return []byte(c.str), nil
}

func (c *CommitID) UnmarshalText(b []byte) error {
	id, err := CommitIDFromString(string(b))
	if err != nil {
		return err
	}
	*c = id
	return nil
}

func (c CommitID) MarshalJSON() ([]byte, error) {
	if !c.Defined() {
		return []byte("null"), nil
	}
	return json.Marshal(c.str)
}

func (c *CommitID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = CommitID{}
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errs.Wrap(errs.KindEncoding, "invalid CommitID JSON", err)
	}
	return c.UnmarshalText([]byte(str))
}
