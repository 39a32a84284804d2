package model

import (
	"encoding/json"
	"fmt"

	"xdao.co/streams/errs"
	"xdao.co/streams/streamid"
)

// MaxDocumentSize is the largest allowed serialized content size in bytes.
const MaxDocumentSize = 16_000_000

// Metadata is the stream metadata fixed at init. Only ShouldIndex may change
// afterwards.
type Metadata struct {
	Model       streamid.StreamID  `json:"model"`
	Controller  string             `json:"controller"`
	Unique      []byte             `json:"unique,omitempty"`
	Context     *streamid.StreamID `json:"context,omitempty"`
	ShouldIndex *bool              `json:"shouldIndex,omitempty"`
}

// DocumentState is the folded state of a document stream. A nil Content is
// the null content of a deterministic init.
//
// States are values: every commit produces a new DocumentState and never
// mutates the previous one.
type DocumentState struct {
	Content  map[string]any `json:"content"`
	Metadata Metadata       `json:"metadata"`
}

// Clone returns a deep copy of s.
func (s *DocumentState) Clone() (*DocumentState, error) {
	content, err := NormalizeContent(s.Content)
	if err != nil {
		return nil, err
	}
	md := s.Metadata
	if s.Metadata.Unique != nil {
		md.Unique = append([]byte{}, s.Metadata.Unique...)
	}
	if s.Metadata.Context != nil {
		c := *s.Metadata.Context
		md.Context = &c
	}
	if s.Metadata.ShouldIndex != nil {
		b := *s.Metadata.ShouldIndex
		md.ShouldIndex = &b
	}
	return &DocumentState{Content: content, Metadata: md}, nil
}

// NormalizeContent converts content into its generic JSON shape (string
// keys, float64 numbers), which is what patches and schemas operate on.
// nil stays nil.
func NormalizeContent(content map[string]any) (map[string]any, error) {
	if content == nil {
		return nil, nil
	}
	b, err := json.Marshal(content)
	if err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "encode content", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "decode content", err)
	}
	return out, nil
}

// ContentSize returns the serialized size of content in bytes.
func ContentSize(content map[string]any) (int, error) {
	if content == nil {
		return 0, nil
	}
	b, err := json.Marshal(content)
	if err != nil {
		return 0, errs.Wrap(errs.KindEncoding, "encode content", err)
	}
	return len(b), nil
}

// AssertContentSize rejects content whose serialized size exceeds limit.
func AssertContentSize(content map[string]any, limit int) error {
	size, err := ContentSize(content)
	if err != nil {
		return err
	}
	if size > limit {
		return errs.Newf(errs.KindSizeLimit, "Content has size of %dB which exceeds maximum size of %dB", size, limit).
			With("size", fmt.Sprint(size)).
			With("max", fmt.Sprint(limit))
	}
	return nil
}
