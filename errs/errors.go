// Package errs defines the structured error taxonomy shared by the stream
// packages.
//
// Callers should branch on Kind (via IsKind or KindOf) rather than matching
// error strings. Message strings are still stable for the handful of
// rejections downstream tooling pattern-matches on (size limit, immutable
// fields, unique mismatch, relation mismatch, account relation and metadata
// mutation).
package errs

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	KindEncoding          Kind = "Encoding"
	KindVerification      Kind = "Verification"
	KindSchemaValidation  Kind = "SchemaValidation"
	KindAccountRelation   Kind = "AccountRelation"
	KindImmutableField    Kind = "ImmutableField"
	KindUniqueConstraint  Kind = "UniqueConstraint"
	KindRelationIntegrity Kind = "RelationIntegrity"
	KindSizeLimit         Kind = "SizeLimit"
	KindLookup            Kind = "Lookup"
	KindMetadataMutation  Kind = "MetadataMutation"
	KindPatch             Kind = "Patch"
	KindConfiguration     Kind = "Configuration"
)

// Error is the structured error type.
//
// Details carries the identifying context needed to reproduce Message
// (model name, field name, stream ids, sizes).
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Detail returns the named detail, or "" when unset.
func (e *Error) Detail(key string) string {
	if e == nil || e.Details == nil {
		return ""
	}
	return e.Details[key]
}

// New returns an *Error with the given kind and message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error carrying cause. The message is msg followed by the
// cause's message.
func Wrap(kind Kind, msg string, cause error) *Error {
	if cause == nil {
		return New(kind, msg)
	}
	return &Error{Kind: kind, Message: msg + ": " + cause.Error(), Cause: cause}
}

// With sets a detail and returns the receiver for chaining.
func (e *Error) With(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
