package templates

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var errWriteFailed = errors.New("write failed")

// setupTemplates loads the embedded templates or fails the test
func setupTemplates(t *testing.T) *Templates {
	t.Helper()
	templates, err := LoadTemplates()
	if err != nil {
		t.Fatalf("failed to load templates: %v", err)
	}
	return templates
}

// failingWriter records headers but rejects every body write
type failingWriter struct {
	*httptest.ResponseRecorder
}

func newFailingWriter() failingWriter {
	return failingWriter{httptest.NewRecorder()}
}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errWriteFailed
}

var _ http.ResponseWriter = failingWriter{}

// missing returns the strings not found in body
func missing(body string, want ...string) []string {
	var out []string
	for _, s := range want {
		if !strings.Contains(body, s) {
			out = append(out, s)
		}
	}
	return out
}
