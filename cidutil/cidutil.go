package cidutil

import (
	"crypto/rand"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// DagCBORSHA256 returns a CIDv1 using the "dag-cbor" multicodec and a
// sha2-256 multihash of data. Commit blocks are addressed this way.
func DagCBORSHA256(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.DagCBOR, sum), nil
}

// MustDagCBORSHA256 is DagCBORSHA256 for callers that hash in-memory bytes.
// multihash.Sum only errors for invalid inputs; with SHA2_256 and -1 length
// this is unreachable.
func MustDagCBORSHA256(data []byte) cid.Cid {
	id, err := DagCBORSHA256(data)
	if err != nil {
		panic(err)
	}
	return id
}

// Random returns a dag-cbor CID over 32 random bytes.
func Random() cid.Cid {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return MustDagCBORSHA256(buf)
}
