package storage

import (
	"bytes"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/streams/cidutil"
)

// MemoryCAS keeps blocks in a map. It is safe for concurrent use.
type MemoryCAS struct {
	mu     sync.RWMutex
	blocks map[cid.Cid][]byte
}

var _ CAS = (*MemoryCAS)(nil)

func NewMemoryCAS() *MemoryCAS {
	return &MemoryCAS{blocks: make(map[cid.Cid][]byte)}
}

func (m *MemoryCAS) Put(b []byte) (cid.Cid, error) {
	id, err := cidutil.DagCBORSHA256(b)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.blocks[id]; ok {
		if !bytes.Equal(existing, b) {
			return cid.Undef, ErrImmutable
		}
		return id, nil
	}
	m.blocks[id] = append([]byte(nil), b...)
	return id, nil
}

func (m *MemoryCAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryCAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocks[id]
	return ok
}

// Len returns the number of stored blocks.
func (m *MemoryCAS) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}
