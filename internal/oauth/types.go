// Package oauth provides the HTTP transport used to talk to an OAuth 2.0
// authorization server during the device authorization grant
package oauth

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the transport
var (
	ErrEmptyEndpoint = errors.New("empty endpoint")
	ErrEmptyBody     = errors.New("empty response body")
)

// ErrorResponse is the structured error body defined by RFC 6749 section 5.2
// and reused by RFC 8628 section 3.5
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

// TransportError describes a failed HTTP exchange. StatusCode is zero when no
// response was received. OAuth is set when the body carried an RFC 6749 error.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	OAuth      *ErrorResponse
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.OAuth != nil && e.OAuth.ErrorDescription != "":
		return fmt.Sprintf("%s %s: status %d: %s: %s", e.Method, e.URL, e.StatusCode, e.OAuth.Error, e.OAuth.ErrorDescription)
	case e.OAuth != nil:
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.OAuth.Error)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the OAuth error code carried by the response, if any
func (e *TransportError) ErrorCode() string {
	if e.OAuth == nil {
		return ""
	}
	return e.OAuth.Error
}

// Temporary reports whether the failure happened below the OAuth layer,
// i.e. there was no parseable error body to classify
func (e *TransportError) Temporary() bool {
	return e.OAuth == nil
}

// AsTransportError unwraps err into a *TransportError
func AsTransportError(err error) (*TransportError, bool) {
	var terr *TransportError
	if errors.As(err, &terr) {
		return terr, true
	}
	return nil, false
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
