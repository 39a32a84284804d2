package storage_test

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/streams/cidutil"
	"xdao.co/streams/storage"
	"xdao.co/streams/storage/testkit"
)

func TestMemoryCAS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return storage.NewMemoryCAS()
	})
}

func TestMultiCAS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return storage.MultiCAS{Adapters: []storage.CAS{storage.NewMemoryCAS(), storage.NewMemoryCAS()}}
	})
}

func TestMultiCAS_ReadFallsBackInOrder(t *testing.T) {
	first, second := storage.NewMemoryCAS(), storage.NewMemoryCAS()
	b := testkit.Block("only in second")
	id, err := second.Put(b)
	require.NoError(t, err)

	m := storage.MultiCAS{Adapters: []storage.CAS{nil, first, second}}
	assert.True(t, m.Has(id))
	got, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = m.Get(cidutil.MustDagCBORSHA256(testkit.Block("nowhere")))
	assert.True(t, storage.IsNotFound(err))
}

type failingCAS struct{ err error }

func (f failingCAS) Put([]byte) (cid.Cid, error) { return cid.Undef, f.err }
func (f failingCAS) Get(cid.Cid) ([]byte, error) { return nil, f.err }
func (f failingCAS) Has(cid.Cid) bool            { return false }

func TestMultiCAS_ReadStopsOnHardError(t *testing.T) {
	second := storage.NewMemoryCAS()
	id, err := second.Put(testkit.Block("x"))
	require.NoError(t, err)

	m := storage.MultiCAS{Adapters: []storage.CAS{failingCAS{err: storage.ErrCIDMismatch}, second}}
	_, err = m.Get(id)
	assert.Equal(t, storage.ErrCIDMismatch, err)
}

func TestMultiCAS_PutWritesFirstUnlessReplicating(t *testing.T) {
	a, b := storage.NewMemoryCAS(), storage.NewMemoryCAS()
	block := testkit.Block("replicate me")

	_, err := storage.MultiCAS{Adapters: []storage.CAS{a, b}}.Put(block)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 0, b.Len())

	id, err := storage.MultiCAS{Adapters: []storage.CAS{a, b}, Replicate: true}.Put(block)
	require.NoError(t, err)
	assert.True(t, a.Has(id))
	assert.True(t, b.Has(id))
}

func TestMultiCAS_ReplicateFailsClosed(t *testing.T) {
	m := storage.MultiCAS{Adapters: []storage.CAS{storage.NewMemoryCAS(), nil}, Replicate: true}
	_, err := m.Put(testkit.Block("x"))
	assert.Error(t, err)

	_, err = storage.MultiCAS{}.Put(testkit.Block("x"))
	assert.Equal(t, storage.ErrNoBackends, err)
}
