// Package validation checks the user-facing parts of a device
// authorization response
package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxUserCodeLength is the upper bound, in characters, for a code a human
// is expected to type. User codes are displayed exactly as issued.
const MaxUserCodeLength = 64

// ValidationError represents a rejected field of a device authorization response
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// ValidateUserCode checks that a server-issued user code can be shown and typed
func ValidateUserCode(code string) error {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return &ValidationError{Field: "user_code", Value: code, Message: "must not be empty"}
	}
	if utf8.RuneCountInString(trimmed) > MaxUserCodeLength {
		return &ValidationError{
			Field:   "user_code",
			Value:   code,
			Message: fmt.Sprintf("length must not exceed %d characters", MaxUserCodeLength),
		}
	}
	if !utf8.ValidString(trimmed) {
		return &ValidationError{Field: "user_code", Value: code, Message: "is not valid UTF-8"}
	}
	for _, r := range trimmed {
		if !unicode.IsPrint(r) {
			return &ValidationError{Field: "user_code", Value: code, Message: "contains non-printable characters"}
		}
	}
	return nil
}

// ValidateVerificationURI checks that a verification URI is an absolute http(s) URL
func ValidateVerificationURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: "verification_uri", Value: raw, Message: err.Error()}
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return &ValidationError{Field: "verification_uri", Value: raw, Message: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &ValidationError{Field: "verification_uri", Value: raw, Message: "host is required"}
	}
	return nil
}
