package events

import (
	"strconv"

	"github.com/ipfs/go-cid"

	"xdao.co/streams/errs"
	"xdao.co/streams/model"
	"xdao.co/streams/patch"
	"xdao.co/streams/streamid"
)

// SepModel is the header separator key naming the model field.
const SepModel = "model"

// Payload is a commit payload that can be encoded to its canonical block.
type Payload interface {
	Encode() ([]byte, error)
}

// InitHeader is the header of a genesis payload.
//
// Unique is present when non-nil, including an empty slice.
type InitHeader struct {
	Controllers []string
	Model       streamid.StreamID
	Unique      []byte
	Context     *streamid.StreamID
	ShouldIndex *bool
}

// Controller returns the first controller, or "" when none is set.
func (h InitHeader) Controller() string {
	if len(h.Controllers) == 0 {
		return ""
	}
	return h.Controllers[0]
}

// InitPayload is a genesis payload. Content is nil for deterministic inits.
type InitPayload struct {
	Content map[string]any
	Header  InitHeader
}

// DataHeader is the optional header of a data payload. Only ShouldIndex is
// permitted by the reducer; any other key lands in Other.
type DataHeader struct {
	ShouldIndex *bool
	Other       map[string]any
}

// Map returns the header as it appears on the wire.
func (h *DataHeader) Map() map[string]any {
	if h == nil {
		return nil
	}
	m := make(map[string]any, len(h.Other)+1)
	for k, v := range h.Other {
		m[k] = v
	}
	if h.ShouldIndex != nil {
		m["shouldIndex"] = *h.ShouldIndex
	}
	return m
}

// DataPayload is an update payload. ID is the genesis commit and Prev the
// commit it builds on.
type DataPayload struct {
	ID     cid.Cid
	Prev   cid.Cid
	Patch  []patch.Operation
	Header *DataHeader
}

// TimePayload is an anchor payload.
type TimePayload struct {
	ID    cid.Cid
	Prev  cid.Cid
	Proof cid.Cid
	Path  string
}

type initHeaderWire struct {
	Controllers []string `cbor:"controllers"`
	Model       []byte   `cbor:"model"`
	Sep         string   `cbor:"sep"`
	Unique      []byte   `cbor:"unique,omitempty"`
	Context     []byte   `cbor:"context,omitempty"`
	ShouldIndex *bool    `cbor:"shouldIndex,omitempty"`
}

type initWire struct {
	Data   any            `cbor:"data"`
	Header initHeaderWire `cbor:"header"`
}

type dataWire struct {
	ID     link             `cbor:"id"`
	Prev   link             `cbor:"prev"`
	Data   []map[string]any `cbor:"data"`
	Header map[string]any   `cbor:"header,omitempty"`
}

type timeWire struct {
	ID    link   `cbor:"id"`
	Prev  link   `cbor:"prev"`
	Proof link   `cbor:"proof"`
	Path  string `cbor:"path"`
}

// Encode returns the canonical block for the payload.
func (p *InitPayload) Encode() ([]byte, error) {
	if !p.Header.Model.Defined() {
		return nil, errs.New(errs.KindEncoding, "init header is missing a model")
	}
	w := initWire{
		Header: initHeaderWire{
			Controllers: p.Header.Controllers,
			Model:       p.Header.Model.Bytes(),
			Sep:         SepModel,
			Unique:      p.Header.Unique,
			ShouldIndex: p.Header.ShouldIndex,
		},
	}
	if w.Header.Controllers == nil {
		w.Header.Controllers = []string{}
	}
	if p.Header.Context != nil {
		w.Header.Context = p.Header.Context.Bytes()
	}
	if p.Content != nil {
		content, err := model.NormalizeContent(p.Content)
		if err != nil {
			return nil, err
		}
		w.Data = toCBORValue(content)
	}
	return marshal(w)
}

// Encode returns the canonical block for the payload.
func (p *DataPayload) Encode() ([]byte, error) {
	w := dataWire{
		ID:     link{p.ID},
		Prev:   link{p.Prev},
		Data:   make([]map[string]any, 0, len(p.Patch)),
		Header: p.Header.Map(),
	}
	for _, op := range p.Patch {
		m := op.Map()
		if v, ok := m["value"]; ok {
			nv, err := fromCBORValue(v)
			if err != nil {
				return nil, errs.Wrap(errs.KindEncoding, "encode patch value", err)
			}
			m["value"] = toCBORValue(nv)
		}
		w.Data = append(w.Data, m)
	}
	return marshal(w)
}

// Encode returns the canonical block for the payload.
func (p *TimePayload) Encode() ([]byte, error) {
	return marshal(timeWire{
		ID:    link{p.ID},
		Prev:  link{p.Prev},
		Proof: link{p.Proof},
		Path:  p.Path,
	})
}

func decodeInit(b []byte) (*InitPayload, error) {
	var w initWire
	if err := decMode.Unmarshal(b, &w); err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "invalid init payload", err)
	}
	if w.Header.Sep != SepModel {
		return nil, errs.Newf(errs.KindEncoding, "invalid init payload: unsupported header sep %q", w.Header.Sep)
	}
	if len(w.Header.Controllers) != 1 {
		return nil, errs.Newf(errs.KindEncoding, "invalid init payload: expected exactly one controller, got %d", len(w.Header.Controllers))
	}
	m, err := streamid.FromBytes(w.Header.Model)
	if err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "invalid init payload model", err)
	}
	p := &InitPayload{
		Header: InitHeader{
			Controllers: w.Header.Controllers,
			Model:       m,
			Unique:      w.Header.Unique,
			ShouldIndex: w.Header.ShouldIndex,
		},
	}
	if w.Header.Context != nil {
		c, err := streamid.FromBytes(w.Header.Context)
		if err != nil {
			return nil, errs.Wrap(errs.KindEncoding, "invalid init payload context", err)
		}
		p.Header.Context = &c
	}
	if w.Data != nil {
		v, err := fromCBORValue(w.Data)
		if err != nil {
			return nil, errs.Wrap(errs.KindEncoding, "invalid init payload content", err)
		}
		content, ok := v.(map[string]any)
		if !ok {
			return nil, errs.New(errs.KindEncoding, "invalid init payload: content must be an object")
		}
		p.Content = content
	}
	return p, nil
}

func decodeData(b []byte) (*DataPayload, error) {
	var w dataWire
	if err := decMode.Unmarshal(b, &w); err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "invalid data payload", err)
	}
	if !w.ID.Defined() || !w.Prev.Defined() {
		return nil, errs.New(errs.KindEncoding, "invalid data payload: missing id or prev")
	}
	p := &DataPayload{
		ID:    w.ID.Cid,
		Prev:  w.Prev.Cid,
		Patch: make([]patch.Operation, 0, len(w.Data)),
	}
	for i, m := range w.Data {
		if v, ok := m["value"]; ok {
			nv, err := fromCBORValue(v)
			if err != nil {
				return nil, errs.Wrap(errs.KindEncoding, "invalid data payload value", err)
			}
			m["value"] = nv
		}
		op, err := patch.FromMap(m)
		if err != nil {
			return nil, errs.Wrap(errs.KindEncoding, "invalid data payload operation "+strconv.Itoa(i), err)
		}
		p.Patch = append(p.Patch, op)
	}
	if w.Header != nil {
		h := &DataHeader{}
		for k, v := range w.Header {
			if k == "shouldIndex" {
				if b, ok := v.(bool); ok {
					h.ShouldIndex = &b
					continue
				}
			}
			if h.Other == nil {
				h.Other = make(map[string]any)
			}
			h.Other[k] = v
		}
		p.Header = h
	}
	return p, nil
}

func decodeTime(b []byte) (*TimePayload, error) {
	var w timeWire
	if err := decMode.Unmarshal(b, &w); err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "invalid time payload", err)
	}
	return &TimePayload{ID: w.ID.Cid, Prev: w.Prev.Cid, Proof: w.Proof.Cid, Path: w.Path}, nil
}
