package bundle_test

import (
	"archive/tar"
	"bytes"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/streams/cidutil"
	"xdao.co/streams/storage"
	"xdao.co/streams/storage/bundle"
	"xdao.co/streams/storage/localfs"
	"xdao.co/streams/storage/testkit"
)

func putAll(t *testing.T, cas storage.CAS, names ...string) []cid.Cid {
	t.Helper()
	out := make([]cid.Cid, 0, len(names))
	for _, n := range names {
		id, err := cas.Put(testkit.Block(n))
		require.NoError(t, err)
		out = append(out, id)
	}
	return out
}

func TestBundle_ExportIsDeterministic(t *testing.T) {
	cas, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	ids := putAll(t, cas, "hello", "world")

	var outA, outB bytes.Buffer
	require.NoError(t, bundle.Export(&outA, cas, ids, bundle.ExportOptions{IncludeIndex: true, Stream: "kjz"}))
	require.NoError(t, bundle.Export(&outB, cas, ids, bundle.ExportOptions{IncludeIndex: true, Stream: "kjz"}))
	assert.Equal(t, outA.Bytes(), outB.Bytes())
}

func TestBundle_ImportRoundTripKeepsLogOrder(t *testing.T) {
	src := storage.NewMemoryCAS()
	log := putAll(t, src, "genesis", "update-1", "update-2")

	var buf bytes.Buffer
	require.NoError(t, bundle.Export(&buf, src, log, bundle.ExportOptions{IncludeIndex: true, Stream: "kjzl6example"}))

	dst, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	idx, err := bundle.Import(bytes.NewReader(buf.Bytes()), dst)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, "kjzl6example", idx.Stream)
	assert.Equal(t, "dag-cbor", idx.CIDCodec)

	got, err := idx.LogCIDs()
	require.NoError(t, err)
	assert.Equal(t, log, got)

	for i, id := range log {
		b, err := dst.Get(id)
		require.NoError(t, err)
		want, _ := src.Get(id)
		assert.Equal(t, want, b, "block %d", i)
	}
}

func TestBundle_ImportWithoutIndex(t *testing.T) {
	src := storage.NewMemoryCAS()
	ids := putAll(t, src, "only")

	var buf bytes.Buffer
	require.NoError(t, bundle.Export(&buf, src, ids, bundle.ExportOptions{}))

	dst := storage.NewMemoryCAS()
	idx, err := bundle.Import(&buf, dst)
	require.NoError(t, err)
	assert.Nil(t, idx)
	assert.True(t, dst.Has(ids[0]))
}

func TestBundle_ExportRejectsDuplicateLogEntry(t *testing.T) {
	src := storage.NewMemoryCAS()
	ids := putAll(t, src, "a")
	var buf bytes.Buffer
	assert.Error(t, bundle.Export(&buf, src, []cid.Cid{ids[0], ids[0]}, bundle.ExportOptions{}))
}

func TestBundle_ImportRejectsCIDMismatch(t *testing.T) {
	good := testkit.Block("good")
	other := cidutil.MustDagCBORSHA256(testkit.Block("other"))

	// Entry name says "other" but the bytes hash to "good".
	tarBytes := makeDeterministicTar(t, map[string][]byte{"blocks/" + other.String(): good})

	_, err := bundle.Import(bytes.NewReader(tarBytes), storage.NewMemoryCAS())
	assert.Equal(t, storage.ErrCIDMismatch, err)
}

func TestBundle_ImportRejectsUnknownEntry(t *testing.T) {
	tarBytes := makeDeterministicTar(t, map[string][]byte{"extra/readme": []byte("hi")})

	_, err := bundle.Import(bytes.NewReader(tarBytes), storage.NewMemoryCAS())
	assert.Error(t, err)

	_, err = bundle.ImportWithOptions(bytes.NewReader(tarBytes), storage.NewMemoryCAS(), bundle.ImportOptions{IgnoreUnknown: true})
	assert.NoError(t, err)
}

func TestBundle_ImportRejectsIncompleteLog(t *testing.T) {
	missing := cidutil.MustDagCBORSHA256(testkit.Block("missing"))
	index := []byte(`{"version":1,"cidCodec":"dag-cbor","multihash":"sha2-256","log":["` + missing.String() + `"],"blocks":[]}`)
	tarBytes := makeDeterministicTar(t, map[string][]byte{"index.json": index})

	_, err := bundle.Import(bytes.NewReader(tarBytes), storage.NewMemoryCAS())
	assert.ErrorContains(t, err, "missing from bundle")
}

func TestBundle_ImportRejectsPathTraversal(t *testing.T) {
	tarBytes := makeDeterministicTar(t, map[string][]byte{"blocks/../escape": []byte("x")})
	_, err := bundle.ImportWithOptions(bytes.NewReader(tarBytes), storage.NewMemoryCAS(), bundle.ImportOptions{IgnoreUnknown: true})
	assert.ErrorContains(t, err, "invalid entry path")
}

func makeDeterministicTar(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range entries {
		h := &tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(content)),
			ModTime:  time.Unix(0, 0).UTC(),
			Typeflag: tar.TypeReg,
		}
		require.NoError(t, tw.WriteHeader(h))
		_, err := tw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}
