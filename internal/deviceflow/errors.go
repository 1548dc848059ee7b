package deviceflow

import (
	"errors"
	"fmt"

	"github.com/wrale/oauth2-device-client/internal/oauth"
)

// Error codes returned by the token endpoint per RFC 8628 section 3.5
const (
	ErrorCodeAuthorizationPending = "authorization_pending"
	ErrorCodeSlowDown             = "slow_down"
	ErrorCodeAccessDenied         = "access_denied"
	ErrorCodeExpiredToken         = "expired_token"
)

// Common errors that may occur during the device authorization flow
var (
	// ErrAuthorizationPending indicates the user has not completed authorization yet
	ErrAuthorizationPending = errors.New("authorization pending")

	// ErrSlowDown indicates the client polls too frequently
	ErrSlowDown = errors.New("polling too frequently")

	// ErrAccessDenied indicates the user declined the authorization request
	ErrAccessDenied = errors.New("access denied")

	// ErrExpiredToken indicates the server considers the device code expired
	ErrExpiredToken = errors.New("device code expired")

	// ErrDeadlineExceeded indicates expires_in elapsed without a token
	ErrDeadlineExceeded = errors.New("device authorization deadline exceeded")

	// ErrTooManyFailures indicates polling gave up after consecutive transient failures
	ErrTooManyFailures = errors.New("too many consecutive polling failures")

	// ErrInvalidDeviceAuthorization indicates an unusable device authorization response
	ErrInvalidDeviceAuthorization = errors.New("invalid device authorization response")

	// ErrFlowRunning indicates Run was called while another run is in progress
	ErrFlowRunning = errors.New("device flow already running")

	errMissingAccessToken = errors.New("token response without access_token")
)

// ErrorKind classifies a failed poll attempt
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindAuthorizationPending
	KindSlowDown
	KindAccessDenied
	KindExpiredToken
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthorizationPending:
		return ErrorCodeAuthorizationPending
	case KindSlowDown:
		return ErrorCodeSlowDown
	case KindAccessDenied:
		return ErrorCodeAccessDenied
	case KindExpiredToken:
		return ErrorCodeExpiredToken
	default:
		return "unknown"
	}
}

// PollError is the classified outcome of a failed token request.
// Code holds the raw OAuth error code, empty for transport failures.
type PollError struct {
	Kind        ErrorKind
	Code        string
	Description string
	Err         error
}

func (e *PollError) Error() string {
	msg := e.Kind.String()
	if e.Kind == KindUnknown && e.Code != "" {
		msg = "unrecognized error " + e.Code
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Kind == KindUnknown && e.Code == "" && e.Err != nil {
		msg = fmt.Sprintf("transport failure: %v", e.Err)
	}
	return msg
}

// Unwrap exposes the matching sentinel and the underlying transport error
func (e *PollError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Transport reports a failure that carried no OAuth error code, such as a
// network error, a non-JSON error page or a success body without a token
func (e *PollError) Transport() bool {
	return e.Kind == KindUnknown && e.Code == ""
}

// DisplayCode is the OAuth error code, or "unknown" for transport failures
func (e *PollError) DisplayCode() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.String()
}

func (e *PollError) sentinel() error {
	switch e.Kind {
	case KindAuthorizationPending:
		return ErrAuthorizationPending
	case KindSlowDown:
		return ErrSlowDown
	case KindAccessDenied:
		return ErrAccessDenied
	case KindExpiredToken:
		return ErrExpiredToken
	default:
		return nil
	}
}

// ClassifyError maps a token request failure to a PollError
func ClassifyError(err error) *PollError {
	perr := &PollError{Kind: KindUnknown, Err: err}

	terr, ok := oauth.AsTransportError(err)
	if !ok || terr.OAuth == nil {
		return perr
	}

	perr.Code = terr.OAuth.Error
	perr.Description = terr.OAuth.ErrorDescription
	switch terr.OAuth.Error {
	case ErrorCodeAuthorizationPending:
		perr.Kind = KindAuthorizationPending
	case ErrorCodeSlowDown:
		perr.Kind = KindSlowDown
	case ErrorCodeAccessDenied:
		perr.Kind = KindAccessDenied
	case ErrorCodeExpiredToken:
		perr.Kind = KindExpiredToken
	}
	return perr
}
