// Package patch computes and applies JSON Patch (RFC 6902) operation lists
// over document content.
package patch

import (
	"encoding/json"
	"strings"

	"golang.org/x/exp/slices"

	"xdao.co/streams/errs"
)

// Op names.
const (
	OpAdd     = "add"
	OpRemove  = "remove"
	OpReplace = "replace"
	OpMove    = "move"
	OpCopy    = "copy"
	OpTest    = "test"
)

// Operation is one JSON Patch operation.
//
// Value is only meaningful for add, replace and test; From only for move
// and copy. The encoded forms carry exactly the members the op defines, so
// a null or zero Value is still encoded for the ops that take one.
type Operation struct {
	Op    string
	Path  string
	From  string
	Value any
}

func hasValue(op string) bool {
	return op == OpAdd || op == OpReplace || op == OpTest
}

func hasFrom(op string) bool {
	return op == OpMove || op == OpCopy
}

// Map returns the operation as a generic object with only the members
// defined for its op.
func (o Operation) Map() map[string]any {
	m := map[string]any{"op": o.Op, "path": o.Path}
	if hasValue(o.Op) {
		m["value"] = o.Value
	}
	if hasFrom(o.Op) {
		m["from"] = o.From
	}
	return m
}

// FromMap parses a generic object into an Operation. Members not defined for
// the op are rejected.
func FromMap(m map[string]any) (Operation, error) {
	op, ok := m["op"].(string)
	if !ok {
		return Operation{}, errs.New(errs.KindEncoding, "patch operation: missing op")
	}
	switch op {
	case OpAdd, OpRemove, OpReplace, OpMove, OpCopy, OpTest:
	default:
		return Operation{}, errs.Newf(errs.KindEncoding, "patch operation: unsupported op %q", op)
	}
	path, ok := m["path"].(string)
	if !ok {
		return Operation{}, errs.Newf(errs.KindEncoding, "patch operation %s: missing path", op)
	}
	out := Operation{Op: op, Path: path}
	allowed := 2
	if hasValue(op) {
		v, ok := m["value"]
		if !ok {
			return Operation{}, errs.Newf(errs.KindEncoding, "patch operation %s: missing value", op)
		}
		out.Value = v
		allowed++
	}
	if hasFrom(op) {
		from, ok := m["from"].(string)
		if !ok {
			return Operation{}, errs.Newf(errs.KindEncoding, "patch operation %s: missing from", op)
		}
		out.From = from
		allowed++
	}
	if len(m) != allowed {
		return Operation{}, errs.Newf(errs.KindEncoding, "patch operation %s: unexpected members", op)
	}
	return out, nil
}

func (o Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Map())
}

func (o *Operation) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return errs.Wrap(errs.KindEncoding, "patch operation", err)
	}
	parsed, err := FromMap(m)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Fields returns the top-level content fields the operation writes to or
// removes from: the first segment of Path and, for move, of From. "/"
// names the empty-string field. Operations on the whole document name no
// field; see TouchesRoot.
func (o Operation) Fields() []string {
	var out []string
	if o.Path != "" {
		out = append(out, topField(o.Path))
	}
	if o.Op == OpMove && o.From != "" {
		if f := topField(o.From); !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// TouchesRoot reports whether the operation rewrites the whole document.
func (o Operation) TouchesRoot() bool {
	return o.Path == "" || (o.Op == OpMove && o.From == "")
}

func topField(pointer string) string {
	seg := strings.TrimPrefix(pointer, "/")
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	return unescape(seg)
}

func unescape(seg string) string {
	seg = strings.ReplaceAll(seg, "~1", "/")
	return strings.ReplaceAll(seg, "~0", "~")
}
