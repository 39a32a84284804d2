// Package bundle moves commit logs between block stores as deterministic TAR
// archives.
//
// A bundle holds one entry per block under blocks/<cid> and, optionally, an
// index.json naming the stream and the ordered commit log so the receiver can
// replay it without any other metadata.
package bundle

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/pkg/errors"

	"xdao.co/streams/cidutil"
	"xdao.co/streams/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

const indexName = "index.json"

var epoch0 = time.Unix(0, 0).UTC()

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Stream is the stream the log belongs to. Recorded in the index only.
	Stream string
	// IncludeIndex controls whether index.json is included.
	IncludeIndex bool
}

// Index describes a bundled commit log.
type Index struct {
	Version   int      `json:"version"`
	CIDCodec  string   `json:"cidCodec"`
	Multihash string   `json:"multihash"`
	Stream    string   `json:"stream,omitempty"`
	Log       []string `json:"log"`
	Blocks    []Block  `json:"blocks"`
}

type Block struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

// LogCIDs parses the ordered commit log of the index.
func (idx *Index) LogCIDs() ([]cid.Cid, error) {
	out := make([]cid.Cid, 0, len(idx.Log))
	for _, s := range idx.Log {
		id, err := cid.Decode(s)
		if err != nil || !id.Defined() {
			return nil, storage.ErrInvalidCID
		}
		out = append(out, id)
	}
	return out, nil
}

// Export writes a deterministic TAR bundle containing the blocks of log.
//
// Block entries are ordered lexicographically and TAR headers are
// normalized, so the same blocks always produce the same bytes. The log order
// is kept in the index. Every exported block is re-hashed against its CID.
func Export(w io.Writer, cas storage.CAS, log []cid.Cid, opts ExportOptions) error {
	if cas == nil {
		return errors.New("bundle: nil CAS")
	}

	uniq := make(map[string]cid.Cid, len(log))
	order := make([]string, 0, len(log))
	for _, id := range log {
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		s := id.String()
		if _, ok := uniq[s]; ok {
			return errors.Errorf("bundle: duplicate commit in log: %s", s)
		}
		uniq[s] = id
		order = append(order, s)
	}

	names := make([]string, 0, len(uniq))
	for s := range uniq {
		names = append(names, s)
	}
	sort.Strings(names)

	tw := tar.NewWriter(w)
	fail := func(err error) error {
		_ = tw.Close()
		return err
	}

	blocks := make([]Block, 0, len(names))
	for _, s := range names {
		id := uniq[s]
		b, err := cas.Get(id)
		if err != nil {
			return fail(errors.Wrapf(err, "bundle: get %s", s))
		}
		got, err := cidutil.DagCBORSHA256(b)
		if err != nil {
			return fail(err)
		}
		if !got.Equals(id) {
			return fail(storage.ErrCIDMismatch)
		}
		if err := writeFile(tw, "blocks/"+s, b); err != nil {
			return fail(err)
		}
		blocks = append(blocks, Block{CID: s, Size: len(b)})
	}

	if opts.IncludeIndex {
		b, err := marshalIndex(Index{
			Version:   FormatVersion,
			CIDCodec:  "dag-cbor",
			Multihash: "sha2-256",
			Stream:    opts.Stream,
			Log:       order,
			Blocks:    blocks,
		})
		if err != nil {
			return fail(err)
		}
		if err := writeFile(tw, indexName, b); err != nil {
			return fail(err)
		}
	}

	return tw.Close()
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown controls whether unknown TAR entries are ignored.
	//
	// Default (false) is fail-closed: unknown entries cause Import to return an error.
	IgnoreUnknown bool
}

// Import reads a bundle from r into cas and returns its index, or nil when
// the bundle carries none.
func Import(r io.Reader, cas storage.CAS) (*Index, error) {
	return ImportWithOptions(r, cas, ImportOptions{})
}

// ImportWithOptions reads a bundle from r into cas.
//
// Each block must hash to the CID in its entry name. When an index is
// present every commit of its log must have been imported.
func ImportWithOptions(r io.Reader, cas storage.CAS, opts ImportOptions) (*Index, error) {
	if cas == nil {
		return nil, errors.New("bundle: nil CAS")
	}

	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var idx *Index

	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "bundle: read entry")
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return nil, errors.Errorf("bundle: invalid entry path: %q", h.Name)
		}

		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return nil, errors.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		if name == indexName {
			var parsed Index
			if err := json.NewDecoder(tr).Decode(&parsed); err != nil {
				return nil, errors.Wrap(err, "bundle: decode index")
			}
			if parsed.Version != FormatVersion {
				return nil, errors.Errorf("bundle: unsupported index version %d", parsed.Version)
			}
			idx = &parsed
			continue
		}

		if !strings.HasPrefix(name, "blocks/") {
			if opts.IgnoreUnknown {
				_, _ = io.Copy(io.Discard, tr)
				continue
			}
			return nil, errors.Errorf("bundle: unknown entry: %s", name)
		}

		id, derr := cid.Decode(strings.TrimPrefix(name, "blocks/"))
		if derr != nil || !id.Defined() {
			return nil, storage.ErrInvalidCID
		}

		payload, rerr := io.ReadAll(tr)
		if rerr != nil {
			return nil, errors.Wrapf(rerr, "bundle: read %s", id)
		}
		got, herr := cidutil.DagCBORSHA256(payload)
		if herr != nil {
			return nil, herr
		}
		if !got.Equals(id) {
			return nil, storage.ErrCIDMismatch
		}

		key := id.String()
		if _, ok := seen[key]; ok {
			return nil, errors.Errorf("bundle: duplicate block entry: %s", key)
		}
		seen[key] = struct{}{}

		putID, perr := cas.Put(payload)
		if perr != nil {
			return nil, perr
		}
		if !putID.Equals(id) {
			return nil, storage.ErrCIDMismatch
		}
	}

	if idx != nil {
		for _, s := range idx.Log {
			if _, ok := seen[s]; !ok {
				return nil, errors.Errorf("bundle: log commit %s missing from bundle", s)
			}
		}
	}
	return idx, nil
}

func marshalIndex(idx Index) ([]byte, error) {
	// Structs and slices only, so encoding/json output is deterministic.
	b, err := json.Marshal(idx)
	if err != nil {
		return nil, errors.Wrap(err, "bundle: encode index")
	}
	return append(b, '\n'), nil
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return errors.Wrapf(err, "bundle: write header %s", name)
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return errors.Wrapf(err, "bundle: write %s", name)
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
