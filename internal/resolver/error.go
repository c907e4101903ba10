package resolver

import (
	"context"
	"errors"
)

var (
	ErrMalformedDNSRecordsDetail = errors.New("DNS response contained records which contain invalid names")
	ErrLameReferral              = errors.New("lame referral")
	ErrCannotUnmarshalDNSMessage = errors.New("cannot unmarshal DNS message")
	ErrCannotMarshalDNSMessage   = errors.New("cannot marshal DNS message")
	ErrServerMisbehaving         = errors.New("server misbehaving")
	ErrInvalidDNSResponse        = errors.New("invalid DNS response")
	ErrNoAnswerFromDNSServer     = errors.New("no answer from DNS server")
	ErrNoServers                 = errors.New("no name servers configured")

	// ErrServerTemporarilyMisbehaving is reported for SERVFAIL; the resulting
	// DNSError has IsTemporary set.
	ErrServerTemporarilyMisbehaving = &temporaryError{"server misbehaving"}
	ErrCanceled                     = &canceledError{}
	ErrTimeout                      = &timeoutError{}
	ErrNoSuchHost                   = &notFoundError{"no such host"}
)

// canceledError keeps the historical net package message while still
// matching context.Canceled.
type canceledError struct{}

func (canceledError) Error() string { return "operation was canceled" }

func (canceledError) Is(err error) bool { return err == context.Canceled }

type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

func (e *timeoutError) Is(err error) bool {
	return err == context.DeadlineExceeded
}

// mapErr maps from the context errors to the historical internal net
// error values.
func mapErr(err error) error {
	switch err {
	case context.Canceled:
		return ErrCanceled
	case context.DeadlineExceeded:
		return ErrTimeout
	default:
		return err
	}
}

// notFoundError turns into a DNSError with IsNotFound set.
type notFoundError struct{ s string }

func (e *notFoundError) Error() string { return e.s }

type temporaryError struct{ s string }

func (e *temporaryError) Error() string   { return e.s }
func (e *temporaryError) Temporary() bool { return true }
func (e *temporaryError) Timeout() bool   { return false }
