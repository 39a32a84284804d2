package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/streams/cidutil"
)

// MultiCAS reads with ordered fallback across adapters.
//
// Hydration order is the slice order; callers supply a fixed order so block
// retrieval never depends on map iteration. Put writes only to the first
// adapter unless Replicate is set, in which case every adapter is written
// and all returned CIDs must match.
type MultiCAS struct {
	Adapters  []CAS
	Replicate bool
}

var _ CAS = MultiCAS{}

func (m MultiCAS) Put(b []byte) (cid.Cid, error) {
	if len(m.Adapters) == 0 {
		return cid.Undef, ErrNoBackends
	}
	if !m.Replicate {
		return m.Adapters[0].Put(b)
	}
	want, err := cidutil.DagCBORSHA256(b)
	if err != nil {
		return cid.Undef, err
	}
	for i, a := range m.Adapters {
		if a == nil {
			return cid.Undef, fmt.Errorf("storage: nil CAS at position %d", i)
		}
		got, err := a.Put(b)
		if err != nil {
			return cid.Undef, err
		}
		if got != want {
			return cid.Undef, ErrCIDMismatch
		}
	}
	return want, nil
}

func (m MultiCAS) Get(id cid.Cid) ([]byte, error) {
	for _, a := range m.Adapters {
		if a == nil {
			continue
		}
		b, err := a.Get(id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (m MultiCAS) Has(id cid.Cid) bool {
	for _, a := range m.Adapters {
		if a != nil && a.Has(id) {
			return true
		}
	}
	return false
}
