// Package testkit holds the conformance suite every CAS implementation runs.
package testkit

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/streams/cidutil"
	"xdao.co/streams/storage"
)

// NewCAS constructs a fresh, empty CAS instance for a test.
// The returned CAS MUST be isolated from other tests.
type NewCAS func(t *testing.T) storage.CAS

// Block returns a small CBOR-encoded block carrying s.
func Block(s string) []byte {
	b, err := cbor.Marshal(map[string]string{"v": s})
	if err != nil {
		panic(err)
	}
	return b
}

// RunCASConformance runs the shared CAS behaviour checks against newCAS.
func RunCASConformance(t *testing.T, newCAS NewCAS) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		cas := newCAS(t)
		want := Block("hello, streams storage")

		id, err := cas.Put(want)
		require.NoError(t, err)
		assert.Equal(t, cidutil.MustDagCBORSHA256(want), id)
		assert.Equal(t, uint64(cid.DagCBOR), id.Prefix().Codec)

		got, err := cas.Get(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		cas := newCAS(t)
		b := Block("same bytes")

		id1, err := cas.Put(b)
		require.NoError(t, err)
		id2, err := cas.Put(b)
		require.NoError(t, err)
		assert.Equal(t, id1, id2)
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		cas := newCAS(t)
		b := Block("copy")
		id, err := cas.Put(b)
		require.NoError(t, err)
		got, err := cas.Get(id)
		require.NoError(t, err)
		got[0] ^= 0xff

		again, err := cas.Get(id)
		require.NoError(t, err)
		assert.Equal(t, b, again, "stored block changed through a returned slice")
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		cas := newCAS(t)
		b := Block("missing")
		id := cidutil.MustDagCBORSHA256(b)

		assert.False(t, cas.Has(id))
		_, err := cas.Get(id)
		assert.True(t, storage.IsNotFound(err), "Get missing: %v", err)

		_, err = cas.Put(b)
		require.NoError(t, err)
		assert.True(t, cas.Has(id))
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		cas := newCAS(t)
		assert.False(t, cas.Has(cid.Undef))
		_, err := cas.Get(cid.Undef)
		assert.Error(t, err)
	})
}
