// Package scimerr implements the gateway's fixed error-kind taxonomy: one
// Kind per failure mode named in the repository/transform/adapter
// contracts, mapped to a single HTTP status and SCIM scimType so that
// router, repository, and transform never hand-roll a status code.
package scimerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a closed enum of the gateway's error taxonomy.
type Kind int

const (
	KindInvalidSyntax Kind = iota
	KindInvalidFilter
	KindInvalidPath
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindUniqueness
	KindVersionMismatch
	KindPreconditionMissing
	KindUnprocessable
	KindTooMany
	KindServerUnavailable
	KindNotImplemented
	KindTransformationConflict
)

type mapping struct {
	status   int
	scimType string
}

var table = map[Kind]mapping{
	KindInvalidSyntax:          {http.StatusBadRequest, "invalidSyntax"},
	KindInvalidFilter:          {http.StatusBadRequest, "invalidFilter"},
	KindInvalidPath:            {http.StatusBadRequest, "invalidPath"},
	KindUnauthorized:           {http.StatusUnauthorized, ""},
	KindForbidden:              {http.StatusForbidden, ""},
	KindNotFound:               {http.StatusNotFound, ""},
	KindUniqueness:             {http.StatusConflict, "uniqueness"},
	KindVersionMismatch:        {http.StatusConflict, ""},
	KindPreconditionMissing:    {http.StatusPreconditionFailed, ""},
	KindUnprocessable:          {http.StatusUnprocessableEntity, ""},
	KindTooMany:                {http.StatusTooManyRequests, "tooMany"},
	KindServerUnavailable:      {http.StatusInternalServerError, ""},
	KindNotImplemented:         {http.StatusNotImplemented, ""},
	KindTransformationConflict: {http.StatusUnprocessableEntity, ""},
}

// Map returns the HTTP status and scimType for a Kind. An unrecognized
// Kind maps to 500 with no scimType — it should never happen and signals
// a programmer error rather than a client-facing condition.
func Map(k Kind) (status int, scimType string) {
	m, ok := table[k]
	if !ok {
		return http.StatusInternalServerError, ""
	}
	return m.status, m.scimType
}

// Error is the gateway's typed error value. Every package that can fail
// in a client-visible way returns *Error (or wraps one) rather than a bare
// error, so the router can map it without string-sniffing.
type Error struct {
	Kind       Kind
	Detail     string
	RetryAfter int // seconds; only meaningful for KindTooMany
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.cause)
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.cause }

// Status and ScimType expose the fixed mapping for this error's Kind.
func (e *Error) Status() int      { s, _ := Map(e.Kind); return s }
func (e *Error) ScimType() string { _, t := Map(e.Kind); return t }

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, cause: cause}
}

// As reports whether err (or anything it wraps) is a *Error of the given
// Kind, mirroring the standard library's errors.As ergonomics.
func As(err error, kind Kind) (*Error, bool) {
	var se *Error
	if !errors.As(err, &se) {
		return nil, false
	}
	return se, se.Kind == kind
}

// AsError reports whether err (or anything it wraps) is a *Error,
// regardless of Kind — used by the router's single error-to-HTTP mapping
// point, which doesn't know in advance which Kind it's handling.
func AsError(err error) (*Error, bool) {
	var se *Error
	ok := errors.As(err, &se)
	return se, ok
}

func InvalidSyntax(detail string) *Error    { return New(KindInvalidSyntax, detail) }
func InvalidFilter(detail string) *Error    { return New(KindInvalidFilter, detail) }
func InvalidPath(detail string) *Error      { return New(KindInvalidPath, detail) }
func Unauthorized(detail string) *Error     { return New(KindUnauthorized, detail) }
func Forbidden(detail string) *Error        { return New(KindForbidden, detail) }
func NotFound(resourceType, id string) *Error {
	return New(KindNotFound, fmt.Sprintf("%s %s not found", resourceType, id))
}
func Uniqueness(detail string) *Error      { return New(KindUniqueness, detail) }
func VersionMismatch(detail string) *Error { return New(KindVersionMismatch, detail) }
func PreconditionMissing(detail string) *Error {
	return New(KindPreconditionMissing, detail)
}
func Unprocessable(detail string) *Error { return New(KindUnprocessable, detail) }
func TooMany(detail string, retryAfter int) *Error {
	return &Error{Kind: KindTooMany, Detail: detail, RetryAfter: retryAfter}
}
func ServerUnavailable(detail string) *Error { return New(KindServerUnavailable, detail) }
func NotImplemented(feature string) *Error {
	return New(KindNotImplemented, fmt.Sprintf("%s not implemented", feature))
}
func TransformationConflict(detail string) *Error {
	return New(KindTransformationConflict, detail)
}
