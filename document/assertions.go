package document

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"xdao.co/streams/errs"
	"xdao.co/streams/events"
	"xdao.co/streams/model"
	"xdao.co/streams/patch"
	"xdao.co/streams/streamid"
)

// assertValidInitHeader checks an init header against the account relation
// of its model.
func assertValidInitHeader(def *model.Definition, header events.InitHeader) error {
	kind := def.AccountRelation.Type
	switch kind {
	case model.AccountRelationSingle:
		if header.Unique != nil {
			return accountRelationError(def, "ModelInstanceDocuments for models with SINGLE accountRelations must be created deterministically")
		}
	case model.AccountRelationSet:
		if header.Unique == nil {
			return accountRelationError(def, "ModelInstanceDocuments for models with SET accountRelations must be created with a unique field containing data from the fields providing the set semantics")
		}
	case model.AccountRelationList:
		if header.Unique == nil {
			return accountRelationError(def, "ModelInstanceDocuments for models with LIST accountRelations must be created with a unique field")
		}
	case model.AccountRelationNone:
		return accountRelationError(def, "ModelInstanceDocument Streams cannot be created on interface Models. Use a different model than "+def.Name+" to create the ModelInstanceDocument.")
	default:
		return errs.Newf(errs.KindConfiguration, "Unsupported account relation %s found in Model %s", kind, def.Name).
			With("model", def.Name).
			With("accountRelation", string(kind))
	}
	return nil
}

func accountRelationError(def *model.Definition, msg string) error {
	return errs.New(errs.KindAccountRelation, msg).
		With("model", def.Name).
		With("accountRelation", string(def.AccountRelation.Type))
}

// EncodeUnique returns the unique value for the given set-semantics fields
// of content, in field order.
func EncodeUnique(fields []string, content map[string]any) []byte {
	parts := make([]string, len(fields))
	for i, f := range fields {
		v, ok := content[f]
		if !ok {
			parts[i] = "undefined"
			continue
		}
		parts[i] = uniquePart(v)
	}
	return []byte(strings.Join(parts, "|"))
}

func uniquePart(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return formatNumber(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// formatNumber renders f in shortest decimal form, switching to exponent
// notation outside [1e-6, 1e21).
func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	if abs < 1e-6 || abs >= 1e21 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		s = strings.Replace(s, "e-0", "e-", 1)
		return strings.Replace(s, "e+0", "e+", 1)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// AssertUniqueMatches checks, for set models only, that the unique value
// recomputed from content equals the one fixed in metadata.
func AssertUniqueMatches(def *model.Definition, md model.Metadata, content map[string]any) error {
	if def.AccountRelation.Type != model.AccountRelationSet {
		return nil
	}
	if md.Unique == nil {
		return errs.New(errs.KindUniqueConstraint, "Missing unique metadata value").With("model", def.Name)
	}
	if content == nil {
		return errs.New(errs.KindUniqueConstraint, "Missing content").With("model", def.Name)
	}
	got := EncodeUnique(def.AccountRelation.Fields, content)
	if !bytes.Equal(got, md.Unique) {
		return errs.New(errs.KindUniqueConstraint, "Unique content fields value does not match metadata. If you are trying to change the value of these fields, this is causing this error: these fields values are not mutable.").
			With("model", def.Name).
			With("expected", string(md.Unique)).
			With("actual", string(got))
	}
	return nil
}

// AssertNoImmutableFieldChange rejects ops touching any of the given fields.
// An op on the document root touches every field.
func AssertNoImmutableFieldChange(ops []patch.Operation, immutable []string) error {
	if len(immutable) == 0 {
		return nil
	}
	fields := make(map[string]struct{}, len(immutable))
	for _, f := range immutable {
		fields[f] = struct{}{}
	}
	for _, op := range ops {
		if op.TouchesRoot() {
			return immutableFieldError(immutable[0])
		}
		for _, f := range op.Fields() {
			if _, ok := fields[f]; ok {
				return immutableFieldError(f)
			}
		}
	}
	return nil
}

func immutableFieldError(field string) error {
	return errs.Newf(errs.KindImmutableField, "Immutable field \"%s\" cannot be updated", field).With("field", field)
}

// immutableFieldsToCheck returns the immutable fields enforced for def.
func immutableFieldsToCheck(def *model.Definition) []string {
	if !def.SupportsImmutableFields() {
		return nil
	}
	return def.ImmutableFields
}

// AssertRelations checks that every document relation field of content
// points to a stream of the expected model.
func AssertRelations(ctx context.Context, dc Context, def *model.Definition, content map[string]any) error {
	fields := maps.Keys(def.Relations)
	slices.Sort(fields)
	for _, field := range fields {
		rel := def.Relations[field]
		if rel.Type != model.RelationDocument {
			continue
		}
		v, ok := content[field]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return errs.Newf(errs.KindRelationIntegrity, "Error while parsing relation from field %s: Invalid StreamID: expected a string", field).
				With("field", field)
		}
		target, err := streamid.FromString(s)
		if err != nil {
			return errs.Wrap(errs.KindRelationIntegrity, "Error while parsing relation from field "+field+": Invalid StreamID", err).
				With("field", field)
		}
		if rel.Model == "" {
			continue
		}
		actual, err := getDocumentModel(ctx, dc, target)
		if err != nil {
			return err
		}
		if actual.String() == rel.Model {
			continue
		}
		implements, err := modelImplements(ctx, dc, actual, rel.Model)
		if err != nil {
			return err
		}
		if implements {
			continue
		}
		return errs.Newf(errs.KindRelationIntegrity,
			"Relation on field %s points to Stream %s, which belongs to Model %s, but this Stream's Model (%s) specifies that this relation must be to a Stream in the Model %s",
			field, target, actual, def.Name, rel.Model).
			With("field", field).
			With("stream", target.String()).
			With("actualModel", actual.String()).
			With("expectedModel", rel.Model).
			With("model", def.Name)
	}
	return nil
}

// modelImplements reports whether the definition of m declares it
// implements the interface model expected. Version 1.0 definitions cannot
// implement interfaces.
func modelImplements(ctx context.Context, dc Context, m streamid.StreamID, expected string) (bool, error) {
	def, err := getModelDefinition(ctx, dc, m)
	if err != nil {
		return false, err
	}
	if !def.SupportsInterfaces() {
		return false, nil
	}
	return slices.Contains(def.Implements, expected), nil
}
