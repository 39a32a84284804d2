package streamid

import (
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"

	"xdao.co/streams/errs"
)

// parsed is the decoded layout shared by StreamID and CommitID.
//
// hasCommit is false for plain stream identifiers. A commit marker byte of
// 0x00 sets hasCommit with an undefined commit (the genesis commit).
type parsed struct {
	typ       Type
	genesis   cid.Cid
	hasCommit bool
	commit    cid.Cid
}

const legacyPrefix = "/ceramic/"

func parseBytes(b []byte, what string) (parsed, error) {
	codec, n, err := varint.FromUvarint(b)
	if err != nil {
		return parsed{}, errs.Wrap(errs.KindEncoding, "invalid "+what+" bytes: malformed codec prefix", err)
	}
	if codec != Codec {
		return parsed{}, errs.Newf(errs.KindEncoding, "invalid %s bytes: expected codec %d, got %d", what, Codec, codec)
	}
	b = b[n:]

	code, n, err := varint.FromUvarint(b)
	if err != nil {
		return parsed{}, errs.Wrap(errs.KindEncoding, "invalid "+what+" bytes: malformed stream type", err)
	}
	typ := Type(code)
	if !typ.Registered() {
		return parsed{}, errs.Newf(errs.KindEncoding, "No stream type registered for index %d", code)
	}
	b = b[n:]

	n, genesis, err := cid.CidFromBytes(b)
	if err != nil {
		return parsed{}, errs.Wrap(errs.KindEncoding, "invalid "+what+" bytes: malformed genesis CID", err)
	}
	rest := b[n:]

	out := parsed{typ: typ, genesis: genesis}
	switch {
	case len(rest) == 0:
		return out, nil
	case len(rest) == 1 && rest[0] == 0:
		out.hasCommit = true
		return out, nil
	}

	n, commit, err := cid.CidFromBytes(rest)
	if err != nil {
		return parsed{}, errs.Wrap(errs.KindEncoding, "invalid "+what+" bytes: malformed commit CID", err)
	}
	if n != len(rest) {
		return parsed{}, errs.Newf(errs.KindEncoding, "invalid %s bytes: %d trailing bytes", what, len(rest)-n)
	}
	out.hasCommit = true
	out.commit = commit
	return out, nil
}

func parseString(s string, what string) (parsed, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, URLScheme)
	trimmed = strings.TrimPrefix(trimmed, legacyPrefix)
	if trimmed == "" {
		return parsed{}, errs.Newf(errs.KindEncoding, "invalid %s string: empty", what)
	}
	enc, data, err := multibase.Decode(trimmed)
	if err != nil {
		return parsed{}, errs.Wrap(errs.KindEncoding, "invalid "+what+" string "+s, err)
	}
	if enc != multibase.Base36 {
		return parsed{}, errs.Newf(errs.KindEncoding, "invalid %s string %s: expected base36 encoding", what, s)
	}
	return parseBytes(data, what)
}

func encodeBytes(typ Type, genesis cid.Cid) []byte {
	out := varint.ToUvarint(Codec)
	out = append(out, varint.ToUvarint(uint64(typ))...)
	return append(out, genesis.Bytes()...)
}

func encodeString(b []byte) string {
	s, err := multibase.Encode(multibase.Base36, b)
	if err != nil {
		// Encode only fails for unknown encodings.
		panic(err)
	}
	return s
}
