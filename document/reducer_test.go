package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"xdao.co/streams/cidutil"
	mock_document "xdao.co/streams/document/mock"
	"xdao.co/streams/errs"
	"xdao.co/streams/events"
	"xdao.co/streams/keys"
	"xdao.co/streams/model"
	"xdao.co/streams/patch"
	"xdao.co/streams/streamid"
)

const controller = "did:key:z6MkController"

func objectSchema(props string, required ...string) json.RawMessage {
	req, _ := json.Marshal(required)
	if required == nil {
		req = []byte("[]")
	}
	return json.RawMessage(fmt.Sprintf(`{"type":"object","properties":%s,"required":%s}`, props, req))
}

func dataContainer(genesis cid.Cid, signer string, ops ...patch.Operation) *events.Container {
	return &events.Container{
		Kind:   events.KindData,
		CID:    cidutil.Random(),
		Signer: signer,
		Data:   &events.DataPayload{ID: genesis, Prev: genesis, Patch: ops},
	}
}

func signedInit(content map[string]any, header events.InitHeader) *events.Container {
	return &events.Container{
		Kind:   events.KindSignedInit,
		CID:    cidutil.Random(),
		Signer: header.Controller(),
		Init:   &events.InitPayload{Content: content, Header: header},
	}
}

func TestReduce_ScenarioA_SingleDeterministicThenData(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	modelID := streamid.Random(streamid.TypeModel)
	def := &model.Definition{
		Version:         "2.0",
		Name:            "SingleModel",
		AccountRelation: model.AccountRelation{Type: model.AccountRelationSingle},
		Schema:          objectSchema(`{"test":{"type":"string"}}`),
	}
	dc := mock_document.NewMockContext(ctrl)
	dc.EXPECT().GetModelDefinition(gomock.Any(), modelID).Return(def, nil).Times(2)

	r := NewReducer()
	initPayload := events.NewDeterministicInit(modelID, controller, nil)
	init := &events.Container{Kind: events.KindDeterministicInit, CID: cidutil.Random(), Init: initPayload}
	state, err := r.Reduce(context.Background(), dc, init)
	require.NoError(t, err)
	assert.Nil(t, state.Content)
	assert.Equal(t, controller, state.Metadata.Controller)
	assert.True(t, modelID.Equals(state.Metadata.Model))
	assert.Nil(t, state.Metadata.Unique)

	sid, err := streamid.New(streamid.TypeModelInstanceDocument, init.CID)
	require.NoError(t, err)
	dc.EXPECT().GetDocumentState(gomock.Any(), sid).Return(state, nil)

	next, err := r.Reduce(context.Background(), dc, dataContainer(init.CID, controller,
		patch.Operation{Op: patch.OpAdd, Path: "/test", Value: "a"}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"test": "a"}, next.Content)
	assert.Equal(t, state.Metadata, next.Metadata)
	assert.Nil(t, state.Content, "prior state must not be mutated")
}

func TestReduce_DeterministicInitWithContent(t *testing.T) {
	r := NewReducer()
	p := events.NewDeterministicInit(streamid.Random(streamid.TypeModel), controller, nil)
	p.Content = map[string]any{"some": "content"}
	_, err := r.Reduce(context.Background(), nil, &events.Container{Kind: events.KindDeterministicInit, CID: cidutil.Random(), Init: p})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindEncoding))
	assert.Equal(t, "Deterministic init events for ModelInstanceDocuments must not have content", err.Error())
}

func TestReduce_SignedInitWithoutContent(t *testing.T) {
	r := NewReducer()
	c := signedInit(nil, events.InitHeader{Controllers: []string{controller}, Model: streamid.Random(streamid.TypeModel), Unique: []byte{1}})
	_, err := r.Reduce(context.Background(), nil, c)
	require.Error(t, err)
	assert.Equal(t, "Signed init events for ModelInstanceDocuments must have content", err.Error())
}

func TestReduce_ScenarioB_SetUniqueIsFixed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	modelID := streamid.Random(streamid.TypeModel)
	def := &model.Definition{
		Version:         "2.0",
		Name:            "SetModel",
		AccountRelation: model.AccountRelation{Type: model.AccountRelationSet, Fields: []string{"foo", "bar"}},
		Schema:          objectSchema(`{"foo":{"type":"string"},"bar":{"type":"string"},"hello":{"type":"string"}}`, "foo", "bar"),
	}
	dc := mock_document.NewMockContext(ctrl)
	dc.EXPECT().GetModelDefinition(gomock.Any(), modelID).Return(def, nil).AnyTimes()

	content := map[string]any{"foo": "one", "bar": "two"}
	unique := EncodeUnique(def.UniqueFields(), content)
	init := signedInit(content, events.InitHeader{Controllers: []string{controller}, Model: modelID, Unique: unique})

	r := NewReducer()
	state, err := r.Reduce(context.Background(), dc, init)
	require.NoError(t, err)
	assert.Equal(t, []byte("one|two"), state.Metadata.Unique)
	assert.Equal(t, content, state.Content)

	sid, err := streamid.New(streamid.TypeModelInstanceDocument, init.CID)
	require.NoError(t, err)
	dc.EXPECT().GetDocumentState(gomock.Any(), sid).Return(state, nil).AnyTimes()

	next, err := r.Reduce(context.Background(), dc, dataContainer(init.CID, controller,
		patch.Operation{Op: patch.OpAdd, Path: "/hello", Value: "world"}))
	require.NoError(t, err)
	assert.Equal(t, "world", next.Content["hello"])

	_, err = r.Reduce(context.Background(), dc, dataContainer(init.CID, controller,
		patch.Operation{Op: patch.OpReplace, Path: "/foo", Value: "x"}))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindUniqueConstraint))
	assert.Equal(t, "Unique content fields value does not match metadata. If you are trying to change the value of these fields, this is causing this error: these fields values are not mutable.", err.Error())
}

func TestReduce_SetSignedInitWithMismatchedUnique(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	modelID := streamid.Random(streamid.TypeModel)
	def := &model.Definition{
		Name:            "SetModel",
		AccountRelation: model.AccountRelation{Type: model.AccountRelationSet, Fields: []string{"foo"}},
		Schema:          objectSchema(`{"foo":{"type":"string"}}`),
	}
	dc := mock_document.NewMockContext(ctrl)
	dc.EXPECT().GetModelDefinition(gomock.Any(), modelID).Return(def, nil)

	init := signedInit(map[string]any{"foo": "one"}, events.InitHeader{Controllers: []string{controller}, Model: modelID, Unique: []byte("other")})
	_, err := NewReducer().Reduce(context.Background(), dc, init)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindUniqueConstraint))
}

func relationFixture(t *testing.T, ctrl *gomock.Controller) (*mock_document.MockContext, streamid.StreamID, *model.Definition, streamid.StreamID, streamid.StreamID, streamid.StreamID) {
	modelID := streamid.Random(streamid.TypeModel)
	expectedRef := streamid.Random(streamid.TypeModel)
	actualRef := streamid.Random(streamid.TypeModel)
	docID := streamid.Random(streamid.TypeModelInstanceDocument)
	def := &model.Definition{
		Version:         "2.0",
		Name:            "TestModel",
		AccountRelation: model.AccountRelation{Type: model.AccountRelationList},
		Schema:          objectSchema(`{"foo":{"type":"string"},"owner":{"type":"string"}}`, "foo"),
		Relations: map[string]model.Relation{
			"foo":   {Type: model.RelationDocument, Model: expectedRef.String()},
			"owner": {Type: model.RelationAccount},
		},
	}
	dc := mock_document.NewMockContext(ctrl)
	dc.EXPECT().GetModelDefinition(gomock.Any(), modelID).Return(def, nil).AnyTimes()
	dc.EXPECT().GetDocumentModel(gomock.Any(), docID).Return(actualRef, nil).AnyTimes()
	dc.EXPECT().GetModelDefinition(gomock.Any(), actualRef).Return(&model.Definition{Name: "OtherModel"}, nil).AnyTimes()
	return dc, modelID, def, expectedRef, actualRef, docID
}

func TestReduce_ScenarioC_RelationToWrongModel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	dc, modelID, _, expectedRef, actualRef, docID := relationFixture(t, ctrl)

	init := signedInit(map[string]any{"foo": docID.String(), "owner": "did:key:zOwner"},
		events.InitHeader{Controllers: []string{controller}, Model: modelID, Unique: []byte{1, 2, 3}})
	_, err := NewReducer().Reduce(context.Background(), dc, init)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindRelationIntegrity))
	assert.Equal(t, fmt.Sprintf(
		"Relation on field foo points to Stream %s, which belongs to Model %s, but this Stream's Model (TestModel) specifies that this relation must be to a Stream in the Model %s",
		docID, actualRef, expectedRef), err.Error())

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "foo", e.Detail("field"))
	assert.Equal(t, docID.String(), e.Detail("stream"))
	assert.Equal(t, actualRef.String(), e.Detail("actualModel"))
	assert.Equal(t, expectedRef.String(), e.Detail("expectedModel"))
}

func TestReduce_RelationRecheckedOnData(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	dc, modelID, _, _, _, docID := relationFixture(t, ctrl)

	genesis := cidutil.Random()
	sid, err := streamid.New(streamid.TypeModelInstanceDocument, genesis)
	require.NoError(t, err)
	prior := &model.DocumentState{
		Content:  map[string]any{"foo": "placeholder"},
		Metadata: model.Metadata{Model: modelID, Controller: controller, Unique: []byte{1}},
	}
	dc.EXPECT().GetDocumentState(gomock.Any(), sid).Return(prior, nil)

	_, err = NewReducer().Reduce(context.Background(), dc, dataContainer(genesis, controller,
		patch.Operation{Op: patch.OpReplace, Path: "/foo", Value: docID.String()}))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindRelationIntegrity))
}

func TestReduce_RelationAcceptsImplementingModel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	modelID := streamid.Random(streamid.TypeModel)
	iface := streamid.Random(streamid.TypeModel)
	impl := streamid.Random(streamid.TypeModel)
	docID := streamid.Random(streamid.TypeModelInstanceDocument)
	def := &model.Definition{
		Name:            "TestModel",
		AccountRelation: model.AccountRelation{Type: model.AccountRelationList},
		Schema:          objectSchema(`{"foo":{"type":"string"}}`),
		Relations:       map[string]model.Relation{"foo": {Type: model.RelationDocument, Model: iface.String()}},
	}
	dc := mock_document.NewMockContext(ctrl)
	dc.EXPECT().GetModelDefinition(gomock.Any(), modelID).Return(def, nil)
	dc.EXPECT().GetDocumentModel(gomock.Any(), docID).Return(impl, nil)
	dc.EXPECT().GetModelDefinition(gomock.Any(), impl).Return(&model.Definition{Name: "Impl", Implements: []string{iface.String()}}, nil)

	init := signedInit(map[string]any{"foo": docID.String()}, events.InitHeader{Controllers: []string{controller}, Model: modelID, Unique: []byte{1}})
	_, err := NewReducer().Reduce(context.Background(), dc, init)
	require.NoError(t, err)
}

func TestReduce_RelationIgnoresImplementsOnV1Model(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	modelID := streamid.Random(streamid.TypeModel)
	iface := streamid.Random(streamid.TypeModel)
	impl := streamid.Random(streamid.TypeModel)
	docID := streamid.Random(streamid.TypeModelInstanceDocument)
	def := &model.Definition{
		Name:            "TestModel",
		AccountRelation: model.AccountRelation{Type: model.AccountRelationList},
		Schema:          objectSchema(`{"foo":{"type":"string"}}`),
		Relations:       map[string]model.Relation{"foo": {Type: model.RelationDocument, Model: iface.String()}},
	}
	dc := mock_document.NewMockContext(ctrl)
	dc.EXPECT().GetModelDefinition(gomock.Any(), modelID).Return(def, nil)
	dc.EXPECT().GetDocumentModel(gomock.Any(), docID).Return(impl, nil)
	dc.EXPECT().GetModelDefinition(gomock.Any(), impl).Return(&model.Definition{Version: "1.0", Name: "Impl", Implements: []string{iface.String()}}, nil)

	init := signedInit(map[string]any{"foo": docID.String()}, events.InitHeader{Controllers: []string{controller}, Model: modelID, Unique: []byte{1}})
	_, err := NewReducer().Reduce(context.Background(), dc, init)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindRelationIntegrity))
}

func TestReduce_RelationInvalidStreamID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	dc, modelID, _, _, _, _ := relationFixture(t, ctrl)

	init := signedInit(map[string]any{"foo": "not-a-stream"}, events.InitHeader{Controllers: []string{controller}, Model: modelID, Unique: []byte{1}})
	_, err := NewReducer().Reduce(context.Background(), dc, init)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindRelationIntegrity))
	assert.True(t, strings.HasPrefix(err.Error(), "Error while parsing relation from field foo: Invalid StreamID"))
}

func TestReduce_ScenarioD_TimeKeepsContent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	genesis := cidutil.Random()
	sid, err := streamid.New(streamid.TypeModelInstanceDocument, genesis)
	require.NoError(t, err)
	prior := &model.DocumentState{
		Content:  map[string]any{"test": true},
		Metadata: model.Metadata{Model: streamid.Random(streamid.TypeModel), Controller: controller},
	}
	dc := mock_document.NewMockContext(ctrl)
	dc.EXPECT().GetDocumentState(gomock.Any(), sid).Return(prior, nil)

	c := &events.Container{Kind: events.KindTime, CID: cidutil.Random(), Time: &events.TimePayload{ID: genesis, Prev: cidutil.Random(), Proof: cidutil.Random(), Path: "/"}}
	state, err := NewReducer().Reduce(context.Background(), dc, c)
	require.NoError(t, err)
	assert.Equal(t, prior, state)
	assert.NotSame(t, prior, state)
}

type dataFixture struct {
	dc      *mock_document.MockContext
	genesis cid.Cid
	prior   *model.DocumentState
	def     *model.Definition
}

func newDataFixture(t *testing.T, ctrl *gomock.Controller, def *model.Definition, content map[string]any) dataFixture {
	modelID := streamid.Random(streamid.TypeModel)
	genesis := cidutil.Random()
	sid, err := streamid.New(streamid.TypeModelInstanceDocument, genesis)
	require.NoError(t, err)
	prior := &model.DocumentState{
		Content:  content,
		Metadata: model.Metadata{Model: modelID, Controller: controller, Unique: []byte{9}},
	}
	dc := mock_document.NewMockContext(ctrl)
	dc.EXPECT().GetDocumentState(gomock.Any(), sid).Return(prior, nil).AnyTimes()
	dc.EXPECT().GetModelDefinition(gomock.Any(), modelID).Return(def, nil).AnyTimes()
	return dataFixture{dc: dc, genesis: genesis, prior: prior, def: def}
}

func listModel(schema json.RawMessage) *model.Definition {
	return &model.Definition{
		Version:         "2.0",
		Name:            "ListModel",
		AccountRelation: model.AccountRelation{Type: model.AccountRelationList},
		Schema:          schema,
	}
}

func TestReduce_DataHeaderMetadataMutation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newDataFixture(t, ctrl, listModel(objectSchema(`{}`)), map[string]any{})

	c := dataContainer(f.genesis, controller)
	c.Data.Header = &events.DataHeader{Other: map[string]any{"controllers": []any{"did:key:zOther"}}}
	_, err := NewReducer().Reduce(context.Background(), f.dc, c)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindMetadataMutation))

	from, err2 := json.Marshal(f.prior.Metadata)
	require.NoError(t, err2)
	assert.Equal(t, fmt.Sprintf(
		`Updating metadata for ModelInstanceDocument Streams is not allowed.  Tried to change metadata for %s from %s to {"controllers":["did:key:zOther"]}`,
		f.genesis, from), err.Error())
}

func TestReduce_DataMergesShouldIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newDataFixture(t, ctrl, listModel(objectSchema(`{"hello":{"type":"string"}}`)), map[string]any{"hello": "world"})

	no := false
	c := dataContainer(f.genesis, controller, patch.Operation{Op: patch.OpReplace, Path: "/hello", Value: "test"})
	c.Data.Header = &events.DataHeader{ShouldIndex: &no}
	state, err := NewReducer().Reduce(context.Background(), f.dc, c)
	require.NoError(t, err)
	require.NotNil(t, state.Metadata.ShouldIndex)
	assert.False(t, *state.Metadata.ShouldIndex)
	assert.Nil(t, f.prior.Metadata.ShouldIndex)
	assert.Equal(t, map[string]any{"hello": "test"}, state.Content)
}

func TestReduce_DataSchemaViolation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newDataFixture(t, ctrl, listModel(objectSchema(`{"hello":{"type":"string"}}`, "hello")), map[string]any{"hello": "world"})

	_, err := NewReducer().Reduce(context.Background(), f.dc, dataContainer(f.genesis, controller,
		patch.Operation{Op: patch.OpReplace, Path: "/hello", Value: 1}))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindSchemaValidation))
	assert.True(t, strings.HasPrefix(err.Error(), "Validation Error: "))
}

func TestReduce_DataImmutableField(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	def := listModel(objectSchema(`{"hello":{"type":"string"},"other":{"type":"string"}}`))
	def.ImmutableFields = []string{"hello"}
	f := newDataFixture(t, ctrl, def, map[string]any{"hello": "world"})
	r := NewReducer()

	_, err := r.Reduce(context.Background(), f.dc, dataContainer(f.genesis, controller,
		patch.Operation{Op: patch.OpAdd, Path: "/other", Value: "ok"},
		patch.Operation{Op: patch.OpReplace, Path: "/hello", Value: "changed"}))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindImmutableField))
	assert.Equal(t, `Immutable field "hello" cannot be updated`, err.Error())

	state, err := r.Reduce(context.Background(), f.dc, dataContainer(f.genesis, controller,
		patch.Operation{Op: patch.OpAdd, Path: "/other", Value: "ok"}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hello": "world", "other": "ok"}, state.Content)

	def.Version = "1.0"
	_, err = r.Reduce(context.Background(), f.dc, dataContainer(f.genesis, controller,
		patch.Operation{Op: patch.OpReplace, Path: "/hello", Value: "changed"}))
	require.NoError(t, err)
}

func TestReduce_DataSizeLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newDataFixture(t, ctrl, listModel(objectSchema(`{}`)), map[string]any{})

	// {"a":"xxxx"} is 12 bytes.
	r := NewReducer(WithMaxDocumentSize(12))
	_, err := r.Reduce(context.Background(), f.dc, dataContainer(f.genesis, controller,
		patch.Operation{Op: patch.OpAdd, Path: "/a", Value: "xxxx"}))
	require.NoError(t, err)

	_, err = r.Reduce(context.Background(), f.dc, dataContainer(f.genesis, controller,
		patch.Operation{Op: patch.OpAdd, Path: "/a", Value: "xxxxx"}))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindSizeLimit))
	assert.Equal(t, "Content has size of 13B which exceeds maximum size of 12B", err.Error())
}

func TestReduce_DataPatchFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newDataFixture(t, ctrl, listModel(objectSchema(`{}`)), map[string]any{})

	_, err := NewReducer().Reduce(context.Background(), f.dc, dataContainer(f.genesis, controller,
		patch.Operation{Op: patch.OpRemove, Path: "/missing"}))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindPatch))
}

func TestReduce_DataSignerMustBeController(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newDataFixture(t, ctrl, listModel(objectSchema(`{}`)), map[string]any{})

	_, err := NewReducer().Reduce(context.Background(), f.dc, dataContainer(f.genesis, "did:key:zSomeoneElse",
		patch.Operation{Op: patch.OpAdd, Path: "/a", Value: 1}))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindVerification))
}

func TestReduce_IsDeterministic(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newDataFixture(t, ctrl, listModel(objectSchema(`{}`)), map[string]any{"list": []any{"a"}})

	c := dataContainer(f.genesis, controller,
		patch.Operation{Op: patch.OpAdd, Path: "/list/-", Value: "b"},
		patch.Operation{Op: patch.OpAdd, Path: "/n", Value: 1.5})
	r := NewReducer()
	a, err := r.Reduce(context.Background(), f.dc, c)
	require.NoError(t, err)
	b, err := r.Reduce(context.Background(), f.dc, c)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, ja, jb)
}

func TestReduce_LookupErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dc := mock_document.NewMockContext(ctrl)
	dc.EXPECT().GetDocumentState(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("connection refused"))
	_, err := NewReducer().Reduce(context.Background(), dc, dataContainer(cidutil.Random(), controller))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindLookup))
	assert.Contains(t, err.Error(), "connection refused")

	dc.EXPECT().GetModelDefinition(gomock.Any(), gomock.Any()).Return(nil, nil)
	init := &events.Container{Kind: events.KindDeterministicInit, CID: cidutil.Random(), Init: events.NewDeterministicInit(streamid.Random(streamid.TypeModel), controller, nil)}
	_, err = NewReducer().Reduce(context.Background(), dc, init)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindLookup))
}

func TestHandleEvent_SignedInitEndToEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	seed := make([]byte, 32)
	signer, err := keys.NewEd25519Signer(seed)
	require.NoError(t, err)

	modelID := streamid.Random(streamid.TypeModel)
	def := listModel(objectSchema(`{"hello":{"type":"string"}}`, "hello"))
	dc := mock_document.NewMockContext(ctrl)
	dc.EXPECT().Verifier().Return(keys.Verifier{})
	dc.EXPECT().GetModelDefinition(gomock.Any(), modelID).Return(def, nil)

	p, err := events.NewInit(events.InitParams{Content: map[string]any{"hello": "world"}, Controller: signer.DID(), Model: modelID})
	require.NoError(t, err)
	env, err := events.Sign(context.Background(), signer, p)
	require.NoError(t, err)
	block, err := env.Encode()
	require.NoError(t, err)

	var logs bytes.Buffer
	r := NewReducer(WithLogger(slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	state, err := r.HandleEvent(context.Background(), dc, block)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hello": "world"}, state.Content)
	assert.Equal(t, signer.DID(), state.Metadata.Controller)
	assert.Len(t, state.Metadata.Unique, 12)
	assert.Contains(t, logs.String(), `"msg":"commit reduced"`)
}
