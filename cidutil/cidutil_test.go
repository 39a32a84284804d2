package cidutil

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDagCBORSHA256_Deterministic(t *testing.T) {
	a, err := DagCBORSHA256([]byte("block"))
	require.NoError(t, err)
	b := MustDagCBORSHA256([]byte("block"))
	assert.True(t, a.Equals(b))
	assert.Equal(t, uint64(1), a.Version())
	assert.Equal(t, uint64(cid.DagCBOR), a.Type())

	other := MustDagCBORSHA256([]byte("other"))
	assert.False(t, a.Equals(other))
}

func TestRandom_Distinct(t *testing.T) {
	assert.False(t, Random().Equals(Random()))
}
