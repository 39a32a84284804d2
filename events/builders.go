package events

import (
	"crypto/rand"

	"xdao.co/streams/errs"
	"xdao.co/streams/patch"
	"xdao.co/streams/streamid"
)

// randomUniqueSize is the length of the random unique value given to
// signed inits that do not supply one.
const randomUniqueSize = 12

// NewDeterministicInit returns the content-less genesis payload whose
// stream id is a pure function of model, controller and unique.
func NewDeterministicInit(m streamid.StreamID, controller string, unique []byte) *InitPayload {
	return &InitPayload{
		Header: InitHeader{
			Controllers: []string{controller},
			Model:       m,
			Unique:      unique,
		},
	}
}

// InitParams configure a signed genesis payload.
type InitParams struct {
	Content     map[string]any
	Controller  string
	Model       streamid.StreamID
	Context     *streamid.StreamID
	ShouldIndex *bool
	// Unique defaults to random bytes, making each document distinct.
	Unique []byte
}

// NewInit returns a genesis payload carrying content, to be signed by the
// controller.
func NewInit(p InitParams) (*InitPayload, error) {
	if p.Content == nil {
		return nil, errs.New(errs.KindEncoding, "signed init payloads must have content")
	}
	if p.Controller == "" {
		return nil, errs.New(errs.KindEncoding, "init payload requires a controller")
	}
	unique := p.Unique
	if unique == nil {
		unique = make([]byte, randomUniqueSize)
		if _, err := rand.Read(unique); err != nil {
			return nil, errs.Wrap(errs.KindEncoding, "random unique", err)
		}
	}
	return &InitPayload{
		Content: p.Content,
		Header: InitHeader{
			Controllers: []string{p.Controller},
			Model:       p.Model,
			Unique:      unique,
			Context:     p.Context,
			ShouldIndex: p.ShouldIndex,
		},
	}, nil
}

// NewData returns the update payload turning from into to on top of the
// current commit.
func NewData(current streamid.CommitID, from, to map[string]any, shouldIndex *bool) (*DataPayload, error) {
	if !current.Defined() {
		return nil, errs.New(errs.KindEncoding, "data payload requires the current commit")
	}
	ops, err := patch.Diff(from, to)
	if err != nil {
		return nil, err
	}
	p := &DataPayload{
		ID:    current.CID(),
		Prev:  current.Commit(),
		Patch: ops,
	}
	if shouldIndex != nil {
		p.Header = &DataHeader{ShouldIndex: shouldIndex}
	}
	return p, nil
}

// DeterministicStreamID returns the stream id of a deterministic init.
func DeterministicStreamID(p *InitPayload) (streamid.StreamID, error) {
	b, err := p.Encode()
	if err != nil {
		return streamid.Undef, err
	}
	return streamid.FromGenesis(streamid.TypeModelInstanceDocument, b)
}
