// Package document folds decoded commits into model instance document
// state.
//
// A Reducer is a pure function of the commit and what its Context returns:
// reducing the same commit twice against the same Context yields identical
// states. Rejections are terminal for the commit and never leave a partial
// state behind.
//
// Commits of one stream form a chain; callers must serialize reduction per
// stream (see package replay). Independent streams may be reduced
// concurrently with one Reducer.
package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"xdao.co/streams/errs"
	"xdao.co/streams/events"
	"xdao.co/streams/model"
	"xdao.co/streams/patch"
	"xdao.co/streams/schema"
	"xdao.co/streams/streamid"
)

var tracer = otel.Tracer("document")

// Reducer validates commits and produces the next document state.
type Reducer struct {
	validator *schema.Validator
	logger    *slog.Logger
	maxSize   int
}

// Option configures a Reducer.
type Option func(*Reducer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reducer) { r.logger = l }
}

// WithValidator shares a schema validator, and its compiled-schema cache,
// between reducers. By default each Reducer owns its own.
func WithValidator(v *schema.Validator) Option {
	return func(r *Reducer) { r.validator = v }
}

// WithMaxDocumentSize lowers or raises the content size ceiling.
func WithMaxDocumentSize(n int) Option {
	return func(r *Reducer) { r.maxSize = n }
}

// NewReducer returns a Reducer configured by opts.
func NewReducer(opts ...Option) *Reducer {
	r := &Reducer{maxSize: model.MaxDocumentSize}
	for _, opt := range opts {
		opt(r)
	}
	if r.validator == nil {
		r.validator = schema.New()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// HandleEvent decodes a commit block, verifying it with the Context
// verifier, and reduces it.
func (r *Reducer) HandleEvent(ctx context.Context, dc Context, block []byte) (*model.DocumentState, error) {
	c, err := events.Decode(ctx, dc.Verifier(), block)
	if err != nil {
		r.logger.WarnContext(ctx, "commit rejected", slog.String("stage", "decode"), slog.String("error_kind", string(errs.KindOf(err))))
		return nil, err
	}
	return r.Reduce(ctx, dc, c)
}

// Reduce folds one decoded commit. Init commits create a new state; data
// and time commits read the prior state from dc.
func (r *Reducer) Reduce(ctx context.Context, dc Context, c *events.Container) (*model.DocumentState, error) {
	ctx, span := tracer.Start(ctx, "Document.Reducer.Reduce")
	defer span.End()
	span.SetAttributes(attribute.String("kind", c.Kind.String()))

	var (
		state *model.DocumentState
		err   error
	)
	switch c.Kind {
	case events.KindDeterministicInit:
		state, err = r.handleDeterministicInit(ctx, dc, c.Init)
	case events.KindSignedInit:
		state, err = r.handleSignedInit(ctx, dc, c.Init)
	case events.KindData:
		state, err = r.handleData(ctx, dc, c)
	case events.KindTime:
		state, err = r.handleTime(ctx, dc, c.Time)
	default:
		err = errs.Newf(errs.KindEncoding, "unknown commit kind %s", c.Kind)
	}

	stream := ""
	if sid, serr := c.StreamID(); serr == nil {
		stream = sid.String()
		span.SetAttributes(attribute.String("stream", stream))
	}
	if err != nil {
		span.RecordError(err)
		r.logger.WarnContext(ctx, "commit rejected",
			slog.String("kind", c.Kind.String()),
			slog.String("stream", stream),
			slog.String("error_kind", string(errs.KindOf(err))),
		)
		return nil, err
	}
	r.logger.DebugContext(ctx, "commit reduced",
		slog.String("kind", c.Kind.String()),
		slog.String("stream", stream),
		slog.String("model", state.Metadata.Model.String()),
	)
	return state, nil
}

func initState(header events.InitHeader, content map[string]any) *model.DocumentState {
	return &model.DocumentState{
		Content: content,
		Metadata: model.Metadata{
			Model:       header.Model,
			Controller:  header.Controller(),
			Unique:      header.Unique,
			Context:     header.Context,
			ShouldIndex: header.ShouldIndex,
		},
	}
}

func (r *Reducer) handleDeterministicInit(ctx context.Context, dc Context, p *events.InitPayload) (*model.DocumentState, error) {
	if p.Content != nil {
		return nil, errs.New(errs.KindEncoding, "Deterministic init events for ModelInstanceDocuments must not have content")
	}
	def, err := getModelDefinition(ctx, dc, p.Header.Model)
	if err != nil {
		return nil, err
	}
	if err := assertValidInitHeader(def, p.Header); err != nil {
		return nil, err
	}
	return initState(p.Header, nil).Clone()
}

func (r *Reducer) handleSignedInit(ctx context.Context, dc Context, p *events.InitPayload) (*model.DocumentState, error) {
	if p.Content == nil {
		return nil, errs.New(errs.KindEncoding, "Signed init events for ModelInstanceDocuments must have content")
	}
	content, err := model.NormalizeContent(p.Content)
	if err != nil {
		return nil, err
	}
	if err := model.AssertContentSize(content, r.maxSize); err != nil {
		return nil, err
	}

	modelID := p.Header.Model
	def, err := getModelDefinition(ctx, dc, modelID)
	if err != nil {
		return nil, err
	}
	if err := assertValidInitHeader(def, p.Header); err != nil {
		return nil, err
	}
	if err := r.validator.Validate(modelID.String(), def.Schema, content); err != nil {
		return nil, err
	}
	state := initState(p.Header, content)
	if err := AssertUniqueMatches(def, state.Metadata, content); err != nil {
		return nil, err
	}
	if err := AssertRelations(ctx, dc, def, content); err != nil {
		return nil, err
	}
	return state.Clone()
}

func (r *Reducer) handleData(ctx context.Context, dc Context, c *events.Container) (*model.DocumentState, error) {
	p := c.Data
	sid, err := streamid.New(streamid.TypeModelInstanceDocument, p.ID)
	if err != nil {
		return nil, err
	}
	prior, err := getDocumentState(ctx, dc, sid)
	if err != nil {
		return nil, err
	}
	current, err := prior.Clone()
	if err != nil {
		return nil, err
	}
	md := current.Metadata

	if c.Signer != md.Controller {
		return nil, errs.Newf(errs.KindVerification, "Signer %s does not match stream controller %s", c.Signer, md.Controller).
			With("signer", c.Signer).
			With("controller", md.Controller).
			With("stream", sid.String())
	}

	if p.Header != nil {
		if len(p.Header.Other) > 0 {
			return nil, metadataMutationError(p, prior.Metadata)
		}
		if p.Header.ShouldIndex != nil {
			v := *p.Header.ShouldIndex
			md.ShouldIndex = &v
		}
	}

	content, err := patch.Apply(current.Content, p.Patch)
	if err != nil {
		return nil, err
	}
	if err := model.AssertContentSize(content, r.maxSize); err != nil {
		return nil, err
	}

	modelID := md.Model
	def, err := getModelDefinition(ctx, dc, modelID)
	if err != nil {
		return nil, err
	}
	if err := r.validator.Validate(modelID.String(), def.Schema, content); err != nil {
		return nil, err
	}
	if err := AssertUniqueMatches(def, prior.Metadata, content); err != nil {
		return nil, err
	}
	if err := AssertNoImmutableFieldChange(p.Patch, immutableFieldsToCheck(def)); err != nil {
		return nil, err
	}
	// Relations are re-checked on every data commit, even when the patch
	// leaves relation fields alone.
	if err := AssertRelations(ctx, dc, def, content); err != nil {
		return nil, err
	}
	return &model.DocumentState{Content: content, Metadata: md}, nil
}

func metadataMutationError(p *events.DataPayload, current model.Metadata) error {
	from, err := json.Marshal(current)
	if err != nil {
		return errs.Wrap(errs.KindEncoding, "encode metadata", err)
	}
	to, err := json.Marshal(p.Header.Map())
	if err != nil {
		return errs.Wrap(errs.KindEncoding, "encode header", err)
	}
	return errs.Newf(errs.KindMetadataMutation,
		"Updating metadata for ModelInstanceDocument Streams is not allowed.  Tried to change metadata for %s from %s to %s",
		p.ID, from, to).
		With("id", p.ID.String()).
		With("from", string(from)).
		With("to", string(to))
}

func (r *Reducer) handleTime(ctx context.Context, dc Context, p *events.TimePayload) (*model.DocumentState, error) {
	sid, err := streamid.New(streamid.TypeModelInstanceDocument, p.ID)
	if err != nil {
		return nil, err
	}
	state, err := getDocumentState(ctx, dc, sid)
	if err != nil {
		return nil, err
	}
	return state.Clone()
}

func getModelDefinition(ctx context.Context, dc Context, m streamid.StreamID) (*model.Definition, error) {
	ctx, span := tracer.Start(ctx, "Document.Context.GetModelDefinition")
	defer span.End()

	def, err := dc.GetModelDefinition(ctx, m)
	if err == nil && def == nil {
		err = fmt.Errorf("model %s not found", m)
	}
	if err != nil {
		span.RecordError(err)
		return nil, lookupError("model definition", m, err)
	}
	return def, nil
}

func getDocumentState(ctx context.Context, dc Context, s streamid.StreamID) (*model.DocumentState, error) {
	ctx, span := tracer.Start(ctx, "Document.Context.GetDocumentState")
	defer span.End()

	state, err := dc.GetDocumentState(ctx, s)
	if err == nil && state == nil {
		err = fmt.Errorf("stream %s not found", s)
	}
	if err != nil {
		span.RecordError(err)
		return nil, lookupError("document state", s, err)
	}
	return state, nil
}

func getDocumentModel(ctx context.Context, dc Context, s streamid.StreamID) (streamid.StreamID, error) {
	ctx, span := tracer.Start(ctx, "Document.Context.GetDocumentModel")
	defer span.End()

	m, err := dc.GetDocumentModel(ctx, s)
	if err != nil {
		span.RecordError(err)
		return streamid.Undef, lookupError("document model", s, err)
	}
	return m, nil
}

func lookupError(what string, id streamid.StreamID, err error) error {
	return errs.Wrap(errs.KindLookup, fmt.Sprintf("load %s for %s", what, id), err).With("stream", id.String())
}
