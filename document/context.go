//go:generate go run go.uber.org/mock/mockgen -source=context.go -destination=mock/context.go
package document

import (
	"context"

	"xdao.co/streams/events"
	"xdao.co/streams/model"
	"xdao.co/streams/streamid"
)

// Context is the collaborator the reducer reads models and prior state from.
//
// Implementations own the I/O. The reducer never retries a failed call; any
// error is reported as a Lookup error for the commit being reduced.
type Context interface {
	// GetModelDefinition returns the definition of the given model stream.
	GetModelDefinition(ctx context.Context, modelID streamid.StreamID) (*model.Definition, error)
	// GetDocumentState returns the current state of a document stream.
	GetDocumentState(ctx context.Context, stream streamid.StreamID) (*model.DocumentState, error)
	// GetDocumentModel returns the model a document stream belongs to.
	GetDocumentModel(ctx context.Context, stream streamid.StreamID) (streamid.StreamID, error)
	// Verifier checks signed commits.
	Verifier() events.Verifier
}
