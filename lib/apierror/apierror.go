// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an API error for status mapping.
type Kind int

const (
	// KindInternal is any error not otherwise classified. Its detail
	// is never exposed to clients.
	KindInternal Kind = iota

	// KindValidation is a malformed or out-of-range request field.
	KindValidation

	// KindUnauthorized is a missing, malformed, or unrecognized API
	// key. The detail is identical for all three cases.
	KindUnauthorized

	// KindNotFound is a reference to an entity that does not exist.
	KindNotFound

	// KindConflict is an attempt to create something that already
	// exists, such as a duplicate agent name or a repeat flag.
	KindConflict

	// KindInvalidVouch is a vouch rejected by a domain rule rather
	// than by field validation, such as a self-vouch.
	KindInvalidVouch

	// KindRateLimited is a request rejected by the rate limiter.
	KindRateLimited
)

// Error is a classified API error. The Detail string is safe to return
// to clients for every kind except KindInternal.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a KindValidation error with a formatted detail.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Detail: fmt.Sprintf(format, args...)}
}

// Unauthorized returns the uniform authentication failure. The detail
// never distinguishes missing, malformed, and unrecognized keys.
func Unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Detail: "invalid or missing API key"}
}

// NotFound returns a KindNotFound error with a formatted detail.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Detail: fmt.Sprintf(format, args...)}
}

// Conflict returns a KindConflict error with a formatted detail.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Detail: fmt.Sprintf(format, args...)}
}

// InvalidVouch returns a KindInvalidVouch error with a formatted detail.
func InvalidVouch(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidVouch, Detail: fmt.Sprintf(format, args...)}
}

// RateLimited returns a KindRateLimited error.
func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Detail: "rate limit exceeded"}
}

// Internal wraps err as a KindInternal error. The wrapped error is
// preserved for logging but never shown to clients.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Detail: "internal error", Err: err}
}

// KindOf returns the Kind of err, or KindInternal if err is not an
// *Error from this package.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to the HTTP status code the gateway should
// respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalidVouch:
		return http.StatusUnprocessableEntity
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Detail returns the client-safe detail string for err. Unclassified
// and internal errors yield a generic message so that database paths,
// SQL text, and library internals never leak to clients.
func Detail(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind != KindInternal {
		return apiErr.Detail
	}
	return "internal server error"
}
