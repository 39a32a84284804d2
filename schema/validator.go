// Package schema validates document content against model JSON Schemas.
//
// A Validator owns its compiled-schema cache. Schemas are compiled once per
// model identifier; concurrent first validations of the same model may both
// compile, and one result is kept. Compilation is pure, so either is fine.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"xdao.co/streams/errs"
)

// Validator validates content against model schemas.
// The zero value is not usable; use New.
type Validator struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// New returns a Validator with an empty cache.
func New() *Validator {
	return &Validator{compiled: make(map[string]*jsonschema.Schema)}
}

// Validate checks content against schema, compiling schema on first use
// for modelID. The cache is keyed by modelID only: a model's schema is
// immutable, so later calls with the same modelID reuse the first compile.
func (v *Validator) Validate(modelID string, schema json.RawMessage, content any) error {
	compiled, err := v.get(modelID, schema)
	if err != nil {
		return err
	}
	doc, err := normalize(content)
	if err != nil {
		return err
	}
	if err := compiled.Validate(doc); err != nil {
		return validationError(modelID, err)
	}
	return nil
}

// Cached reports whether a compiled schema exists for modelID.
func (v *Validator) Cached(modelID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.compiled[modelID]
	return ok
}

func (v *Validator) get(modelID string, schema json.RawMessage) (*jsonschema.Schema, error) {
	v.mu.RLock()
	s, ok := v.compiled[modelID]
	v.mu.RUnlock()
	if ok {
		return s, nil
	}

	// Compile outside the lock; a racing compile of the same model is discarded.
	s, err := compile(modelID, schema)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if existing, ok := v.compiled[modelID]; ok {
		return existing, nil
	}
	v.compiled[modelID] = s
	return s, nil
}

func compile(modelID string, schema json.RawMessage) (*jsonschema.Schema, error) {
	if len(schema) == 0 {
		return nil, errs.Newf(errs.KindConfiguration, "Model %s has no schema", modelID).With("model", modelID)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true
	loc := "mem:///models/" + url.PathEscape(modelID) + ".json"
	if err := c.AddResource(loc, bytes.NewReader(schema)); err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "invalid schema for model "+modelID, err).With("model", modelID)
	}
	s, err := c.Compile(loc)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "invalid schema for model "+modelID, err).With("model", modelID)
	}
	return s, nil
}

// normalize converts content to the generic JSON shape the compiled schema
// expects (maps, slices, float64, string, bool, nil).
func normalize(content any) (any, error) {
	b, err := json.Marshal(content)
	if err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "encode content for validation", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "decode content for validation", err)
	}
	return out, nil
}

// Violation is one failed schema keyword.
type Violation struct {
	// InstancePath is the JSON pointer of the offending value ("" for the root).
	InstancePath string
	// Keyword is the failing schema keyword, e.g. "required" or "type".
	Keyword string
	// KeywordPath is the JSON pointer of the keyword within the schema.
	KeywordPath string
	Message     string
}

func (v Violation) String() string {
	return fmt.Sprintf("data%s %s: %s", v.InstancePath, v.Keyword, v.Message)
}

// Violations extracts the leaf violations from a validation error, sorted
// by instance path then keyword path.
func Violations(err error) []Violation {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil
	}
	var out []Violation
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, Violation{
				InstancePath: e.InstanceLocation,
				Keyword:      lastSegment(e.KeywordLocation),
				KeywordPath:  e.KeywordLocation,
				Message:      e.Message,
			})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].InstancePath != out[j].InstancePath {
			return out[i].InstancePath < out[j].InstancePath
		}
		return out[i].KeywordPath < out[j].KeywordPath
	})
	return out
}

func validationError(modelID string, err error) error {
	violations := Violations(err)
	if len(violations) == 0 {
		return errs.Wrap(errs.KindSchemaValidation, "Validation Error", err).With("model", modelID)
	}
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.String())
	}
	e := errs.New(errs.KindSchemaValidation, "Validation Error: "+strings.Join(parts, ", ")).With("model", modelID)
	e.Cause = err
	return e
}

func lastSegment(pointer string) string {
	if i := strings.LastIndexByte(pointer, '/'); i >= 0 {
		return pointer[i+1:]
	}
	return pointer
}
