package templates

import (
	"errors"
	"testing"
)

func TestLoadTemplates(t *testing.T) {
	templates, err := LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates() error = %v", err)
	}
	if templates.device == nil {
		t.Error("device template not loaded")
	}
	if templates.error == nil {
		t.Error("error template not loaded")
	}
}

func TestTemplateError(t *testing.T) {
	cause := errors.New("original error")
	err := &TemplateError{
		Cause:   cause,
		Message: "template failed",
	}

	want := "template error: template failed: original error"
	if got := err.Error(); got != want {
		t.Errorf("TemplateError.Error() = %q, want %q", got, want)
	}

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("errors.Unwrap() = %v, want %v", unwrapped, cause)
	}
}
