// Package apierr defines the failure taxonomy shared by the token exchange,
// resource discovery and request signing layers.
//
// Every failure surfaced by those layers is an *Error carrying a Kind. Callers
// branch on the kind with errors.Is against the sentinel kinds, or pull the
// full record out with errors.As.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind classifies a failure.
type Kind string

const (
	KindConfigIncomplete Kind = "configuration_incomplete"
	KindProviderHTTP     Kind = "provider_http_error"
	KindNetwork          Kind = "network_error"
	KindTimeout          Kind = "timeout"
	KindNoResources      Kind = "no_jira_sites"
	KindMissingCode      Kind = "no_code"
	KindProviderDenied   Kind = "provider_denied"
	KindInternal         Kind = "internal_error"
)

// Error is a classified failure with an operation name and, for provider
// responses, the HTTP status and body text.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Body   string
	Msg    string
	// Reason overrides the machine code reported by Code.
	Reason string
	Err    error
}

func (e *Error) Error() string {
	prefix := e.Op
	if prefix != "" {
		prefix += ": "
	}
	switch e.Kind {
	case KindProviderHTTP:
		return fmt.Sprintf("%srequest failed with status %d: %s", prefix, e.Status, e.Body)
	case KindNetwork:
		return fmt.Sprintf("%snetwork error, check internet connectivity: %v", prefix, e.Err)
	case KindTimeout:
		return fmt.Sprintf("%srequest timed out: %v", prefix, e.Err)
	}
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s%s: %v", prefix, msg, e.Err)
	}
	return prefix + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind so errors.Is(err, apierr.ErrTimeout) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Status == 0 && t.Reason == ""
}

// Sentinels for errors.Is.
var (
	ErrConfigIncomplete = &Error{Kind: KindConfigIncomplete}
	ErrProviderHTTP     = &Error{Kind: KindProviderHTTP}
	ErrNetwork          = &Error{Kind: KindNetwork}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrNoResources      = &Error{Kind: KindNoResources}
	ErrMissingCode      = &Error{Kind: KindMissingCode}
	ErrProviderDenied   = &Error{Kind: KindProviderDenied}
)

// ConfigIncomplete reports which required fields are missing.
func ConfigIncomplete(op string, missing ...string) *Error {
	return &Error{Kind: KindConfigIncomplete, Op: op, Msg: fmt.Sprintf("configuration incomplete, missing %v", missing)}
}

// WithReason sets the machine code reported by Code and returns e.
func (e *Error) WithReason(reason string) *Error {
	e.Reason = reason
	return e
}

// ProviderHTTP wraps a non-2xx response.
func ProviderHTTP(op string, status int, body string) *Error {
	return &Error{Kind: KindProviderHTTP, Op: op, Status: status, Body: body}
}

// ProviderDenied wraps an error parameter returned by the identity provider.
func ProviderDenied(reason string) *Error {
	return &Error{Kind: KindProviderDenied, Msg: reason}
}

// Classify maps a transport error onto the taxonomy. Already classified
// errors pass through untouched.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return &Error{Kind: KindTimeout, Op: op, Err: err}
		}
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &Error{Kind: KindInternal, Op: op, Msg: "request failed", Err: urlErr.Err}
	}
	return &Error{Kind: KindInternal, Op: op, Msg: "request failed", Err: err}
}

// KindOf returns the kind of a classified error, or KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Code returns the short string placed in the settings redirect: the
// machine reason when one is set, otherwise the human readable message.
func Code(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Reason != "" {
			return ae.Reason
		}
		switch ae.Kind {
		case KindNoResources, KindMissingCode:
			return string(ae.Kind)
		case KindProviderDenied:
			return ae.Msg
		}
	}
	return err.Error()
}
