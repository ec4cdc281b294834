package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// Code is the stable classification of a request outcome.
type Code int

const (
	Success Code = iota
	ConnectionRefused
	RemoteHostClosed
	HostNotFound
	Timeout
	ServiceUnavailable
	ReplyTimeout
	Aborted
	AccessDenied
	NotFound
	Unhandled
)

var codeNames = map[Code]string{
	Success:            "success",
	ConnectionRefused:  "connection refused",
	RemoteHostClosed:   "remote host closed",
	HostNotFound:       "host not found",
	Timeout:            "timeout",
	ServiceUnavailable: "service unavailable",
	ReplyTimeout:       "reply timeout",
	Aborted:            "aborted",
	AccessDenied:       "access denied",
	NotFound:           "not found",
	Unhandled:          "unhandled",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Transient reports whether the fault is expected to clear by itself.
func (c Code) Transient() bool {
	switch c {
	case ConnectionRefused, RemoteHostClosed, HostNotFound, Timeout, ServiceUnavailable:
		return true
	}
	return false
}

// Retryable reports whether Retry re-issues the operation.
func (c Code) Retryable() bool {
	return c.Transient() || c == ReplyTimeout
}

// Invalid reports whether the remote rejected the resource permanently.
func (c Code) Invalid() bool {
	return c == AccessDenied || c == NotFound
}

// Error is returned for every request that did not succeed.
type Error struct {
	Code   Code
	Method string
	URL    string
	Status int // HTTP status, zero if no response was received
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Code)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the classification from err. A nil error is Success and
// a bare context cancellation is Aborted.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	if errors.Is(err, context.Canceled) {
		return Aborted
	}
	return Unhandled
}

// classifyStatus maps an HTTP status to a Code.
func classifyStatus(status int) Code {
	switch {
	case status >= 200 && status < 300:
		return Success
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return AccessDenied
	case status == http.StatusNotFound, status == http.StatusGone:
		return NotFound
	case status == http.StatusTooManyRequests, status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return ServiceUnavailable
	}
	return Unhandled
}

// classifyErr maps a client error to a Code. parent is the caller's
// context and req the per-request context carrying the watchdog cause.
func classifyErr(parent, req context.Context, err error) Code {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case parent.Err() != nil:
		return Aborted
	case req != nil && errors.Is(context.Cause(req), errReplyTimeout):
		return ReplyTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return ConnectionRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return RemoteHostClosed
	case errors.As(err, &dnsErr):
		return HostNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return Timeout
	}
	return Unhandled
}
