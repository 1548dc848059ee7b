// Package templates renders the status pages and QR codes for the
// verification URI
package templates

import (
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"

	qrcode "github.com/skip2/go-qrcode"
)

// RFC 8628 section 3.3.1 suggests a QR code for verification_uri_complete
const qrImageSize = 256

// ErrEmptyURI is returned when there is nothing to encode
var ErrEmptyURI = errors.New("empty verification URI")

// GenerateQRCode encodes the verification URI as a PNG data URI for the
// status page
func GenerateQRCode(verificationURI string) (template.URL, error) {
	if verificationURI == "" {
		return "", ErrEmptyURI
	}

	png, err := qrcode.Encode(verificationURI, qrcode.Medium, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("encoding QR code: %w", err)
	}

	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)), nil
}

// TerminalQRCode renders the verification URI with half-block characters
// for display in a terminal
func TerminalQRCode(verificationURI string) (string, error) {
	if verificationURI == "" {
		return "", ErrEmptyURI
	}

	q, err := qrcode.New(verificationURI, qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("encoding QR code: %w", err)
	}
	return q.ToSmallString(false), nil
}
