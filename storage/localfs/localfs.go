// Package localfs stores commit blocks as files, one per CID, sharded by the
// first two characters of the CID string.
package localfs

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"
	"github.com/pkg/errors"

	"xdao.co/streams/cidutil"
	"xdao.co/streams/storage"
)

// CAS is a filesystem-backed block store. It never touches the network and
// every read is re-hashed against the requested CID.
type CAS struct {
	root string
}

var _ storage.CAS = (*CAS)(nil)

// New returns a CAS rooted at root, creating the directory if needed.
func New(root string) (*CAS, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "localfs: create %s", root)
	}
	return &CAS{root: root}, nil
}

func (c *CAS) Put(b []byte) (cid.Cid, error) {
	id, err := cidutil.DagCBORSHA256(b)
	if err != nil {
		return cid.Undef, err
	}

	path := c.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cid.Undef, errors.Wrap(err, "localfs: create shard")
	}

	// Readers never observe a partial block: write a temp file, then link.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return cid.Undef, errors.Wrap(err, "localfs: create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return cid.Undef, errors.Wrap(err, "localfs: write block")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return cid.Undef, errors.Wrap(err, "localfs: sync block")
	}
	if err := tmp.Close(); err != nil {
		return cid.Undef, errors.Wrap(err, "localfs: close block")
	}
	if err := os.Chmod(tmpName, 0o444); err != nil {
		return cid.Undef, errors.Wrap(err, "localfs: chmod block")
	}

	if err := os.Link(tmpName, path); err != nil {
		if !os.IsExist(err) {
			return cid.Undef, errors.Wrap(err, "localfs: link block")
		}
		existing, rerr := c.Get(id)
		if rerr != nil || !bytes.Equal(existing, b) {
			return cid.Undef, storage.ErrImmutable
		}
	}
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	b, err := os.ReadFile(c.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrapf(err, "localfs: read %s", id)
	}
	got, err := cidutil.DagCBORSHA256(b)
	if err != nil {
		return nil, err
	}
	if !got.Equals(id) {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := os.Stat(c.pathFor(id))
	return err == nil
}

func (c *CAS) pathFor(id cid.Cid) string {
	s := id.String()
	if len(s) < 2 {
		return filepath.Join(c.root, s)
	}
	return filepath.Join(c.root, s[:2], s)
}
