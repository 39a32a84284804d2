package replay

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/streams/errs"
	"xdao.co/streams/events"
	"xdao.co/streams/model"
	"xdao.co/streams/streamid"
)

// Store is an in-memory document.Context: registered model definitions plus
// the committed state and tip of every replayed stream.
//
// It is safe for concurrent use. States handed out are clones.
type Store struct {
	verifier events.Verifier

	mu     sync.RWMutex
	models map[string]*model.Definition
	states map[string]*model.DocumentState
	tips   map[string]cid.Cid
}

// NewStore returns an empty Store verifying signed commits with v.
func NewStore(v events.Verifier) *Store {
	return &Store{
		verifier: v,
		models:   make(map[string]*model.Definition),
		states:   make(map[string]*model.DocumentState),
		tips:     make(map[string]cid.Cid),
	}
}

// RegisterModel makes def resolvable under id. Registering the same id again
// replaces the definition.
func (s *Store) RegisterModel(id streamid.StreamID, def *model.Definition) error {
	if id.Type() != streamid.TypeModel {
		return errs.Newf(errs.KindConfiguration, "%s is not a model stream", id).With("stream", id.String())
	}
	if def == nil {
		return errs.Newf(errs.KindConfiguration, "nil definition for model %s", id).With("stream", id.String())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[id.String()] = def
	return nil
}

// Models returns the number of registered models.
func (s *Store) Models() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.models)
}

func (s *Store) GetModelDefinition(_ context.Context, modelID streamid.StreamID) (*model.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.models[modelID.String()]
	if !ok {
		return nil, errs.Newf(errs.KindLookup, "model %s is not registered", modelID).With("stream", modelID.String())
	}
	return def, nil
}

func (s *Store) GetDocumentState(_ context.Context, stream streamid.StreamID) (*model.DocumentState, error) {
	s.mu.RLock()
	state, ok := s.states[stream.String()]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.Newf(errs.KindLookup, "stream %s has no state", stream).With("stream", stream.String())
	}
	return state.Clone()
}

func (s *Store) GetDocumentModel(_ context.Context, stream streamid.StreamID) (streamid.StreamID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[stream.String()]
	if !ok {
		return streamid.Undef, errs.Newf(errs.KindLookup, "stream %s has no state", stream).With("stream", stream.String())
	}
	return state.Metadata.Model, nil
}

func (s *Store) Verifier() events.Verifier { return s.verifier }

// Tip returns the last commit applied to stream.
func (s *Store) Tip(stream streamid.StreamID) (cid.Cid, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tip, ok := s.tips[stream.String()]
	return tip, ok
}

func (s *Store) commit(stream streamid.StreamID, tip cid.Cid, state *model.DocumentState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[stream.String()] = state
	s.tips[stream.String()] = tip
}
