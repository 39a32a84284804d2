// Package storage defines the content-addressed block store commit logs are
// hydrated from, plus in-memory and fallback implementations.
package storage

import "github.com/ipfs/go-cid"

// CAS is a minimal content-addressable block store for commit blocks.
//
// Contract:
// - Put MUST be idempotent.
// - Stored blocks MUST be immutable.
// - CIDs are dag-cbor sha2-256 CIDv1 derived from the bytes written; callers
//   supply canonical encodings.
// - Get MUST return ErrNotFound when the CID is absent.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
