package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"
)

//go:embed html/*.html
var content embed.FS

// TemplateError wraps a rendering failure
type TemplateError struct {
	Message string
	Cause   error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error: %s: %v", e.Message, e.Cause)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// Templates manages the HTML templates of the status server
type Templates struct {
	device *template.Template
	error  *template.Template
}

var funcs = template.FuncMap{
	"rfc3339": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	},
}

// LoadTemplates loads and parses all HTML templates
func LoadTemplates() (*Templates, error) {
	t := &Templates{}
	var err error

	if t.device, err = template.New("device").Funcs(funcs).ParseFS(content, "html/device.html", "html/layout.html"); err != nil {
		return nil, err
	}

	if t.error, err = template.New("error").Funcs(funcs).ParseFS(content, "html/error.html", "html/layout.html"); err != nil {
		return nil, err
	}

	return t, nil
}

// DeviceData holds data for the device authorization status page
type DeviceData struct {
	UserCode        string
	VerificationURI string
	QRCode          template.URL // PNG data URI of the verification URI
	State           string
	ExpiresAt       time.Time
	Running         bool
	CSRFToken       string
	Error           string
}

// RenderDevice renders the device authorization status page
func (t *Templates) RenderDevice(w io.Writer, data DeviceData) error {
	if err := t.device.ExecuteTemplate(w, "layout", data); err != nil {
		return &TemplateError{Message: "rendering device page", Cause: err}
	}
	return nil
}

// ErrorData holds data for the error page
type ErrorData struct {
	Title   string
	Message string
}

// RenderError renders the error page
func (t *Templates) RenderError(w io.Writer, data ErrorData) error {
	if err := t.error.ExecuteTemplate(w, "layout", data); err != nil {
		return &TemplateError{Message: "rendering error page", Cause: err}
	}
	return nil
}
