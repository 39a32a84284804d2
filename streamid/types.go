package streamid

import (
	"sort"

	"xdao.co/streams/errs"
)

// Codec is the multicodec prefixing every binary stream identifier.
const Codec uint64 = 206

// URLScheme prefixes the URL form of an identifier.
const URLScheme = "ceramic://"

// Type is a registered stream type code.
type Type uint64

const (
	TypeTile                  Type = 0
	TypeCAIP10Link            Type = 1
	TypeModel                 Type = 2
	TypeModelInstanceDocument Type = 3
	TypeUnloadable            Type = 4
)

var typesByName = map[string]Type{
	"tile":        TypeTile,
	"caip10-link": TypeCAIP10Link,
	"model":       TypeModel,
	"MID":         TypeModelInstanceDocument,
	"UNLOADABLE":  TypeUnloadable,
}

// TypeByName returns the code registered for name.
func TypeByName(name string) (Type, error) {
	t, ok := typesByName[name]
	if !ok {
		return 0, errs.Newf(errs.KindEncoding, "No stream type registered for name %s", name).With("name", name)
	}
	return t, nil
}

// Name returns the registered name of t.
func (t Type) Name() (string, error) {
	for name, code := range typesByName {
		if code == t {
			return name, nil
		}
	}
	return "", errs.Newf(errs.KindEncoding, "No stream type registered for index %d", uint64(t))
}

// Registered reports whether t has a registered name.
func (t Type) Registered() bool {
	_, err := t.Name()
	return err == nil
}

// TypeNames returns the registered type names, sorted.
func TypeNames() []string {
	out := make([]string, 0, len(typesByName))
	for name := range typesByName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
