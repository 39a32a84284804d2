// Package replay folds commit logs into document state.
//
// A Replayer owns the per-stream ordering the reducer leaves to its caller:
// commits of one stream are applied one at a time and must extend the
// stream's current tip, while independent streams replay concurrently.
package replay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ipfs/go-cid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"xdao.co/streams/document"
	"xdao.co/streams/errs"
	"xdao.co/streams/events"
	"xdao.co/streams/model"
	"xdao.co/streams/storage"
)

var tracer = otel.Tracer("replay")

// Replayer applies commits to a Store.
type Replayer struct {
	store   *Store
	reducer *document.Reducer
	cas     storage.CAS
	logger  *slog.Logger

	// stream id -> *sync.Mutex
	locks sync.Map
}

// Option configures a Replayer.
type Option func(*Replayer)

// WithCAS sets the block store ReplayLog hydrates commits from.
func WithCAS(cas storage.CAS) Option {
	return func(r *Replayer) { r.cas = cas }
}

// WithReducer replaces the default reducer.
func WithReducer(red *document.Reducer) Option {
	return func(r *Replayer) { r.reducer = red }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Replayer) { r.logger = l }
}

// New returns a Replayer committing into store.
func New(store *Store, opts ...Option) *Replayer {
	r := &Replayer{store: store}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.reducer == nil {
		r.reducer = document.NewReducer(document.WithLogger(r.logger))
	}
	return r
}

// Store returns the store the Replayer commits into.
func (r *Replayer) Store() *Store { return r.store }

func (r *Replayer) lock(stream string) func() {
	mu, _ := r.locks.LoadOrStore(stream, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Apply decodes block, reduces it and commits the resulting state.
//
// Init commits must start a new stream; re-applying the current tip is a
// no-op. Data and time commits must name the current tip as prev. Nothing is
// committed when any check fails.
func (r *Replayer) Apply(ctx context.Context, block []byte) (*model.DocumentState, error) {
	ctx, span := tracer.Start(ctx, "Replay.Replayer.Apply")
	defer span.End()

	c, err := events.Decode(ctx, r.store.Verifier(), block)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	sid, err := c.StreamID()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	stream := sid.String()
	span.SetAttributes(
		attribute.String("stream", stream),
		attribute.String("commit", c.CID.String()),
	)

	unlock := r.lock(stream)
	defer unlock()

	tip, exists := r.store.Tip(sid)
	if exists && tip.Equals(c.CID) {
		return r.store.GetDocumentState(ctx, sid)
	}
	switch {
	case c.Kind.IsInit() && exists:
		err = errs.Newf(errs.KindLookup, "stream %s already has genesis", stream).With("stream", stream)
	case !c.Kind.IsInit() && !exists:
		err = errs.Newf(errs.KindLookup, "commit %s references unknown stream %s", c.CID, stream).
			With("stream", stream).
			With("commit", c.CID.String())
	case !c.Kind.IsInit() && !c.Prev().Equals(tip):
		err = errs.Newf(errs.KindLookup, "commit %s does not extend tip %s of stream %s", c.CID, tip, stream).
			With("stream", stream).
			With("commit", c.CID.String()).
			With("prev", c.Prev().String()).
			With("tip", tip.String())
	}
	if err != nil {
		span.RecordError(err)
		r.logger.WarnContext(ctx, "commit out of order", slog.String("stream", stream), slog.String("commit", c.CID.String()))
		return nil, err
	}

	state, err := r.reducer.Reduce(ctx, r.store, c)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	r.store.commit(sid, c.CID, state)
	return state.Clone()
}

// ReplayLog hydrates the given commits from the CAS, in slice order, and
// applies each. It stops at the first failure and returns the state after
// the last applied commit alongside the error.
func (r *Replayer) ReplayLog(ctx context.Context, log []cid.Cid) (*model.DocumentState, error) {
	if r.cas == nil {
		return nil, errs.New(errs.KindConfiguration, "replay: no CAS configured for log hydration")
	}
	var state *model.DocumentState
	for i, id := range log {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		block, err := r.cas.Get(id)
		if err != nil {
			return state, errs.Wrap(errs.KindLookup, "hydrate commit "+id.String(), err).
				With("commit", id.String())
		}
		next, err := r.Apply(ctx, block)
		if err != nil {
			r.logger.WarnContext(ctx, "replay stopped",
				slog.Int("index", i),
				slog.String("commit", id.String()),
				slog.String("error_kind", string(errs.KindOf(err))),
			)
			return state, err
		}
		state = next
	}
	return state, nil
}
