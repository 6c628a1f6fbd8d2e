// Package apierr defines the error taxonomy shared by every core component
// and the HTTP status mapping the server surface uses to translate it.
package apierr

import (
	"errors"
	"net/http"
)

// Code identifies one kind in the taxonomy. Kinds are not Go types — a
// single Code models an entire family of failures (spec.md §7).
type Code string

const (
	CodeInvalidRequest     Code = "invalid_request"
	CodeInvalidDocument    Code = "invalid_document"
	CodeEmptyExtraction    Code = "empty_extraction"
	CodeDimensionMismatch  Code = "dimension_mismatch"
	CodeEmbedderUnavail    Code = "embedder_unavailable"
	CodeScriptSynthFailed  Code = "script_synth_failed"
	CodeMalformedScript    Code = "malformed_script"
	CodeAllProvidersFailed Code = "all_providers_failed"
	CodeMuxFailed          Code = "mux_failed"
	CodeInternal           Code = "internal"
)

// Error is the structured error every core component returns. It carries a
// Code from the taxonomy, a human-readable reason, and optionally the
// offending input.
type Error struct {
	Code   Code
	Reason string
	Input  string
	cause  error
}

func (e *Error) Error() string {
	if e.Input != "" {
		return e.Code.String() + ": " + e.Reason + " (input: " + e.Input + ")"
	}
	return e.Code.String() + ": " + e.Reason
}

func (e *Error) Unwrap() error { return e.cause }

func (c Code) String() string { return string(c) }

// New builds an *Error with the given code and reason.
func New(code Code, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

// Wrap builds an *Error that preserves cause for errors.Is/As chains.
func Wrap(code Code, reason string, cause error) *Error {
	return &Error{Code: code, Reason: reason, cause: cause}
}

// WithInput attaches the offending input to the error and returns it.
func (e *Error) WithInput(input string) *Error {
	e.Input = input
	return e
}

// HTTPStatus maps a Code to the status class spec.md §7 prescribes.
// MuxFailed never reaches here — it is handled as a degraded success, not
// an error response (spec.md §4.6, §7).
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidRequest, CodeInvalidDocument, CodeEmptyExtraction:
		return http.StatusBadRequest
	case CodeDimensionMismatch, CodeEmbedderUnavail, CodeScriptSynthFailed,
		CodeMalformedScript, CodeAllProvidersFailed, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// As extracts an *Error from err, if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
