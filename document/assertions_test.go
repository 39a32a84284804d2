package document

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/streams/errs"
	"xdao.co/streams/events"
	"xdao.co/streams/model"
	"xdao.co/streams/patch"
	"xdao.co/streams/streamid"
)

func TestEncodeUnique(t *testing.T) {
	content := map[string]any{
		"foo":    "one",
		"bar":    "two",
		"n":      float64(42),
		"f":      1.5,
		"yes":    true,
		"nil":    nil,
		"obj":    map[string]any{"a": float64(1)},
		"list":   []any{"x", float64(2)},
		"tiny":   1e-7,
		"huge":   1e21,
		"negint": float64(-3),
	}
	assert.Equal(t, []byte("one|two"), EncodeUnique([]string{"foo", "bar"}, content))
	assert.Equal(t, []byte("two|one"), EncodeUnique([]string{"bar", "foo"}, content))
	assert.Equal(t, "42|1.5|true|null|undefined", string(EncodeUnique([]string{"n", "f", "yes", "nil", "missing"}, content)))
	assert.Equal(t, `{"a":1}|["x",2]`, string(EncodeUnique([]string{"obj", "list"}, content)))
	assert.Equal(t, "1e-7|1e+21|-3", string(EncodeUnique([]string{"tiny", "huge", "negint"}, content)))
	assert.Equal(t, "", string(EncodeUnique(nil, content)))
	assert.Equal(t, "0|0", string(EncodeUnique([]string{"negzero", "zero"}, map[string]any{"negzero": math.Copysign(0, -1), "zero": float64(0)})))
}

func TestAssertUniqueMatches(t *testing.T) {
	def := &model.Definition{Name: "SetModel", AccountRelation: model.AccountRelation{Type: model.AccountRelationSet, Fields: []string{"foo", "bar"}}}
	md := model.Metadata{Unique: []byte("one|two")}

	require.NoError(t, AssertUniqueMatches(def, md, map[string]any{"foo": "one", "bar": "two", "other": 1}))

	err := AssertUniqueMatches(def, md, map[string]any{"foo": "x", "bar": "two"})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindUniqueConstraint))
	assert.Equal(t, "Unique content fields value does not match metadata. If you are trying to change the value of these fields, this is causing this error: these fields values are not mutable.", err.Error())

	err = AssertUniqueMatches(def, model.Metadata{}, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, "Missing unique metadata value", err.Error())

	err = AssertUniqueMatches(def, md, nil)
	require.Error(t, err)
	assert.Equal(t, "Missing content", err.Error())

	list := &model.Definition{AccountRelation: model.AccountRelation{Type: model.AccountRelationList}}
	require.NoError(t, AssertUniqueMatches(list, model.Metadata{}, nil))
}

func TestAssertNoImmutableFieldChange(t *testing.T) {
	immutable := []string{"hello", "a/b"}
	cases := []struct {
		name  string
		op    patch.Operation
		field string
	}{
		{"replace", patch.Operation{Op: patch.OpReplace, Path: "/hello", Value: "x"}, "hello"},
		{"add", patch.Operation{Op: patch.OpAdd, Path: "/hello", Value: "x"}, "hello"},
		{"remove", patch.Operation{Op: patch.OpRemove, Path: "/hello"}, "hello"},
		{"nested", patch.Operation{Op: patch.OpReplace, Path: "/hello/inner", Value: "x"}, "hello"},
		{"move from", patch.Operation{Op: patch.OpMove, From: "/hello", Path: "/other"}, "hello"},
		{"copy onto", patch.Operation{Op: patch.OpCopy, From: "/other", Path: "/hello"}, "hello"},
		{"escaped", patch.Operation{Op: patch.OpReplace, Path: "/a~1b", Value: "x"}, "a/b"},
		{"root", patch.Operation{Op: patch.OpReplace, Path: "", Value: map[string]any{}}, "hello"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ops := []patch.Operation{{Op: patch.OpAdd, Path: "/free", Value: 1}, tc.op}
			err := AssertNoImmutableFieldChange(ops, immutable)
			require.Error(t, err)
			assert.True(t, errs.IsKind(err, errs.KindImmutableField))
			assert.Equal(t, `Immutable field "`+tc.field+`" cannot be updated`, err.Error())
		})
	}

	ok := []patch.Operation{
		{Op: patch.OpAdd, Path: "/free", Value: 1},
		{Op: patch.OpCopy, From: "/hello", Path: "/copy"},
		{Op: patch.OpTest, Path: "/free", Value: 1},
	}
	require.NoError(t, AssertNoImmutableFieldChange(ok, immutable))
	require.NoError(t, AssertNoImmutableFieldChange([]patch.Operation{{Op: patch.OpRemove, Path: "/hello"}}, nil))
	// "/" is the empty-string field, not the document root.
	require.NoError(t, AssertNoImmutableFieldChange([]patch.Operation{{Op: patch.OpAdd, Path: "/", Value: 1}}, immutable))
	err := AssertNoImmutableFieldChange([]patch.Operation{{Op: patch.OpAdd, Path: "/", Value: 1}}, []string{""})
	require.Error(t, err)
	assert.Equal(t, `Immutable field "" cannot be updated`, err.Error())
}

func TestImmutableFieldsToCheck_SkipsV1(t *testing.T) {
	def := &model.Definition{Version: "1.0", ImmutableFields: []string{"hello"}}
	assert.Nil(t, immutableFieldsToCheck(def))
	def.Version = "2.0"
	assert.Equal(t, []string{"hello"}, immutableFieldsToCheck(def))
}

func TestAssertValidInitHeader_Matrix(t *testing.T) {
	cases := []struct {
		kind      model.AccountRelationType
		unique    []byte
		errKind   errs.Kind
		errString string
	}{
		{model.AccountRelationSingle, nil, "", ""},
		{model.AccountRelationSingle, []byte{}, errs.KindAccountRelation, "ModelInstanceDocuments for models with SINGLE accountRelations must be created deterministically"},
		{model.AccountRelationSet, []byte("a|b"), "", ""},
		{model.AccountRelationSet, nil, errs.KindAccountRelation, "ModelInstanceDocuments for models with SET accountRelations must be created with a unique field containing data from the fields providing the set semantics"},
		{model.AccountRelationList, []byte{1}, "", ""},
		{model.AccountRelationList, nil, errs.KindAccountRelation, "ModelInstanceDocuments for models with LIST accountRelations must be created with a unique field"},
		{model.AccountRelationNone, nil, errs.KindAccountRelation, "ModelInstanceDocument Streams cannot be created on interface Models. Use a different model than TestModel to create the ModelInstanceDocument."},
		{model.AccountRelationNone, []byte{1}, errs.KindAccountRelation, "ModelInstanceDocument Streams cannot be created on interface Models. Use a different model than TestModel to create the ModelInstanceDocument."},
		{"multi", nil, errs.KindConfiguration, "Unsupported account relation multi found in Model TestModel"},
	}
	for _, tc := range cases {
		def := &model.Definition{Name: "TestModel", AccountRelation: model.AccountRelation{Type: tc.kind}}
		header := events.InitHeader{Controllers: []string{"did:key:z"}, Model: streamid.Random(streamid.TypeModel), Unique: tc.unique}
		err := assertValidInitHeader(def, header)
		if tc.errKind == "" {
			assert.NoError(t, err, "kind=%s unique=%v", tc.kind, tc.unique)
			continue
		}
		require.Error(t, err, "kind=%s unique=%v", tc.kind, tc.unique)
		assert.True(t, errs.IsKind(err, tc.errKind), "kind=%s", tc.kind)
		assert.Equal(t, tc.errString, err.Error())
	}
}
