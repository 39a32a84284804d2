package patch

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/wI2L/jsondiff"

	"xdao.co/streams/errs"
)

// Diff returns the operations transforming from into to. A nil side is
// treated as the empty object. Diff(x, x) is the empty list.
func Diff(from, to map[string]any) ([]Operation, error) {
	p, err := jsondiff.Compare(orEmpty(from), orEmpty(to))
	if err != nil {
		return nil, errs.Wrap(errs.KindPatch, "compute patch", err)
	}
	out := make([]Operation, 0, len(p))
	for _, op := range p {
		out = append(out, Operation{
			Op:    op.Type,
			Path:  op.Path,
			From:  op.From,
			Value: op.Value,
		})
	}
	return out, nil
}

// Apply applies ops in order to content and returns the new content.
// content is not modified. A nil content is treated as the empty object.
// Any operation whose path does not resolve, or a failing test operation,
// fails the whole patch. Operations on the document root must leave an
// object behind.
func Apply(content map[string]any, ops []Operation) (map[string]any, error) {
	doc, err := json.Marshal(orEmpty(content))
	if err != nil {
		return nil, errs.Wrap(errs.KindPatch, "encode content", err)
	}
	var pending []Operation
	for _, op := range ops {
		if op.Path != "" {
			pending = append(pending, op)
			continue
		}
		if doc, err = applyBatch(doc, pending); err != nil {
			return nil, err
		}
		pending = nil
		if doc, err = applyRoot(doc, op); err != nil {
			return nil, err
		}
	}
	if doc, err = applyBatch(doc, pending); err != nil {
		return nil, err
	}
	return decodeObject(doc)
}

func applyBatch(doc []byte, ops []Operation) ([]byte, error) {
	if len(ops) == 0 {
		return doc, nil
	}
	raw, err := json.Marshal(ops)
	if err != nil {
		return nil, errs.Wrap(errs.KindPatch, "encode patch", err)
	}
	p, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, errs.Wrap(errs.KindPatch, "decode patch", err)
	}
	out, err := p.Apply(doc)
	if err != nil {
		return nil, errs.Wrap(errs.KindPatch, "apply patch", err)
	}
	return out, nil
}

// applyRoot handles an operation whose path is the whole document, which
// json-patch leaves untouched for non-object values.
func applyRoot(doc []byte, op Operation) ([]byte, error) {
	switch op.Op {
	case OpAdd, OpReplace:
		return rootValue(op.Value)
	case OpCopy, OpMove:
		var cur any
		if err := json.Unmarshal(doc, &cur); err != nil {
			return nil, errs.Wrap(errs.KindPatch, "decode content", err)
		}
		v, ok := lookup(cur, op.From)
		if !ok {
			return nil, errs.Newf(errs.KindPatch, "%s operation: from path %q does not exist", op.Op, op.From)
		}
		return rootValue(v)
	case OpTest:
		var cur, want any
		if err := json.Unmarshal(doc, &cur); err != nil {
			return nil, errs.Wrap(errs.KindPatch, "decode content", err)
		}
		b, err := json.Marshal(op.Value)
		if err != nil {
			return nil, errs.Wrap(errs.KindPatch, "encode test value", err)
		}
		if err := json.Unmarshal(b, &want); err != nil {
			return nil, errs.Wrap(errs.KindPatch, "decode test value", err)
		}
		if !reflect.DeepEqual(cur, want) {
			return nil, errs.New(errs.KindPatch, "test operation failed at document root")
		}
		return doc, nil
	case OpRemove:
		return nil, errs.New(errs.KindPatch, "cannot remove the document root")
	default:
		return nil, errs.Newf(errs.KindPatch, "unsupported op %q", op.Op)
	}
}

func rootValue(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(errs.KindPatch, "encode value", err)
	}
	if _, err := decodeObject(b); err != nil {
		return nil, err
	}
	return b, nil
}

// lookup resolves a JSON pointer against a decoded document.
func lookup(doc any, pointer string) (any, bool) {
	if pointer == "" {
		return doc, true
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, false
	}
	cur := doc
	for _, seg := range strings.Split(pointer[1:], "/") {
		seg = unescape(seg)
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func decodeObject(b []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errs.Wrap(errs.KindPatch, "patched content is not an object", err)
	}
	if out == nil {
		return nil, errs.New(errs.KindPatch, "patched content is not an object")
	}
	return out, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
