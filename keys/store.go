package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrKeyExists is returned when a key file is already present and
	// overwrite was not requested.
	ErrKeyExists = errors.New("key already exists")
	// ErrNoSeed is returned by Resolve when the source names nothing.
	ErrNoSeed = errors.New("no seed source given")
)

var labelPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// KeyStore holds named ed25519 seeds under one directory:
//
//	<dir>/<name>/root.key
//	<dir>/<name>/roles/<role>.key
//
// Files hold the hex seed and are created 0600. A role file can always be
// recreated from its root with DeriveRoleSeed.
type KeyStore struct {
	dir string
}

// Key describes one stored seed. Role is empty for a root key.
type Key struct {
	Name string
	Role string
	DID  string
	Path string
}

// Identity is a stored name and the roles derived for it.
type Identity struct {
	Name  string
	Roles []string
}

// SeedSource picks a seed for signing. Hex wins over File, File over a
// stored Name (and optional Role).
type SeedSource struct {
	Hex  string
	File string
	Name string
	Role string
}

// DefaultDir is ~/.xdao/streams/keys.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home directory")
	}
	return filepath.Join(home, ".xdao", "streams", "keys"), nil
}

// NewKeyStore opens a store rooted at dir, or at DefaultDir when dir is
// empty. Nothing is created until a key is written.
func NewKeyStore(dir string) (*KeyStore, error) {
	if dir == "" {
		var err error
		if dir, err = DefaultDir(); err != nil {
			return nil, err
		}
	}
	return &KeyStore{dir: dir}, nil
}

func (ks *KeyStore) Dir() string { return ks.dir }

func (ks *KeyStore) path(name, role string) string {
	if role == "" {
		return filepath.Join(ks.dir, name, "root.key")
	}
	return filepath.Join(ks.dir, name, "roles", role+".key")
}

// ValidateName checks a key name: ASCII letters, digits, '-' and '_'.
func ValidateName(name string) error { return checkLabel("name", name) }

// ValidateRole applies the key name rules to a role.
func ValidateRole(role string) error { return checkLabel("role", role) }

func checkLabel(what, v string) error {
	if v == "" {
		return errors.Errorf("%s cannot be empty", what)
	}
	if !labelPattern.MatchString(v) {
		return errors.Errorf("invalid %s %q: use letters, digits, '-' or '_'", what, v)
	}
	return nil
}

// ParseSeed decodes a hex seed, tolerating surrounding space and a 0x prefix.
func ParseSeed(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode seed")
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return seed, nil
}

// Create stores seed as the root key of name.
func (ks *KeyStore) Create(name string, seed []byte, overwrite bool) (Key, error) {
	if err := ValidateName(name); err != nil {
		return Key{}, err
	}
	return ks.store(name, "", seed, overwrite)
}

// Derive stores the role seed derived from the root key of name.
func (ks *KeyStore) Derive(name, role string, overwrite bool) (Key, error) {
	if err := ValidateRole(role); err != nil {
		return Key{}, err
	}
	root, err := ks.Seed(name, "")
	if err != nil {
		return Key{}, err
	}
	seed, err := DeriveRoleSeed(root, role)
	if err != nil {
		return Key{}, err
	}
	return ks.store(name, role, seed, overwrite)
}

// Key describes the stored key name (role optional).
func (ks *KeyStore) Key(name, role string) (Key, error) {
	seed, err := ks.Seed(name, role)
	if err != nil {
		return Key{}, err
	}
	did, err := DIDFromSeed(seed)
	if err != nil {
		return Key{}, err
	}
	return Key{Name: name, Role: role, DID: did, Path: ks.path(name, role)}, nil
}

// Seed reads the stored seed of name (role optional).
func (ks *KeyStore) Seed(name, role string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if role != "" {
		if err := ValidateRole(role); err != nil {
			return nil, err
		}
	}
	return readSeed(ks.path(name, role))
}

// Resolve returns the seed src selects.
func (ks *KeyStore) Resolve(src SeedSource) ([]byte, error) {
	switch {
	case src.Hex != "":
		return ParseSeed(src.Hex)
	case src.File != "":
		return readSeed(src.File)
	case src.Name != "":
		return ks.Seed(src.Name, src.Role)
	default:
		return nil, ErrNoSeed
	}
}

// List returns every stored name with its roles, both sorted.
func (ks *KeyStore) List() ([]Identity, error) {
	entries, err := os.ReadDir(ks.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "list keys")
	}
	var out []Identity
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := Identity{Name: e.Name()}
		roles, err := filepath.Glob(filepath.Join(ks.dir, e.Name(), "roles", "*.key"))
		if err != nil {
			return nil, errors.Wrap(err, "list roles")
		}
		for _, r := range roles {
			id.Roles = append(id.Roles, strings.TrimSuffix(filepath.Base(r), ".key"))
		}
		sort.Strings(id.Roles)
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (ks *KeyStore) store(name, role string, seed []byte, overwrite bool) (Key, error) {
	did, err := DIDFromSeed(seed)
	if err != nil {
		return Key{}, err
	}
	path := ks.path(name, role)
	if err := writeSeed(path, seed, overwrite); err != nil {
		return Key{}, err
	}
	return Key{Name: name, Role: role, DID: did, Path: path}, nil
}

// writeSeed publishes the file with a link (or a rename when overwriting) so
// a reader never sees a half-written seed.
func writeSeed(path string, seed []byte, overwrite bool) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".seed-*")
	if err != nil {
		return errors.Wrap(err, "create temp seed file")
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "chmod seed file")
	}
	if _, err := tmp.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	if overwrite {
		return errors.Wrapf(os.Rename(tmp.Name(), path), "store %s", path)
	}
	if err := os.Link(tmp.Name(), path); err != nil {
		if os.IsExist(err) {
			return errors.Wrap(ErrKeyExists, path)
		}
		return errors.Wrapf(err, "store %s", path)
	}
	return nil
}

func readSeed(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return ParseSeed(string(b))
}
