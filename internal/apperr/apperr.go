package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure crossing a component boundary.
type Kind string

const (
	ClientNotReady      Kind = "client_not_ready"
	InvalidResponse     Kind = "invalid_response"
	HTTP                Kind = "http"
	ParseFailure        Kind = "parse_failure"
	NotConfigured       Kind = "not_configured"
	AllCandidatesFailed Kind = "all_candidates_failed"
	NotFound            Kind = "not_found"
)

// Error is the typed error carried between the core components.
type Error struct {
	Kind Kind
	Op   string
	Code int // HTTP status, only for Kind HTTP
	Body string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Kind == HTTP {
		msg = fmt.Sprintf("http %d", e.Code)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind so sentinels like ErrNotConfigured work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == 0 || t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrClientNotReady      = &Error{Kind: ClientNotReady}
	ErrInvalidResponse     = &Error{Kind: InvalidResponse}
	ErrParseFailure        = &Error{Kind: ParseFailure}
	ErrNotConfigured       = &Error{Kind: NotConfigured}
	ErrAllCandidatesFailed = &Error{Kind: AllCandidatesFailed}
	ErrNotFound            = &Error{Kind: NotFound}
)

// New returns an error of the given kind for op.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// HTTPStatus returns an HTTP error. body is kept for logs only.
func HTTPStatus(op string, code int, body string) *Error {
	return &Error{Kind: HTTP, Op: op, Code: code, Body: body}
}

// KindOf reports the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Kind == HTTP {
		return e.Code
	}
	return 0
}

// IsTerminal reports whether retrying err cannot succeed.
func IsTerminal(err error) bool {
	switch KindOf(err) {
	case NotConfigured, ParseFailure, ClientNotReady, NotFound:
		return true
	case HTTP:
		code := StatusCode(err)
		return code == 401 || code == 403
	}
	return false
}

// UserMessage renders err as a short line safe to show to a person.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case ClientNotReady:
		return "Telegram is not connected yet. Try again in a moment."
	case NotConfigured:
		return "AI provider is not configured. Add an API key to the config."
	case ParseFailure, InvalidResponse:
		return "The AI returned an unexpected answer. Try again."
	case AllCandidatesFailed:
		return "Could not load any chats to check. Try again."
	case NotFound:
		return "Telegram does not know that user or file."
	case HTTP:
		switch code := StatusCode(err); {
		case code == 401 || code == 403:
			return "The AI provider rejected the API key."
		case code == 429:
			return "The AI provider is rate limiting requests. Try again shortly."
		default:
			return "The AI provider is unavailable. Try again."
		}
	}
	if errors.Is(err, context.Canceled) {
		return "Cancelled."
	}
	return "Something went wrong. Try again."
}
