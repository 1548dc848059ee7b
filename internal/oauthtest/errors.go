package oauthtest

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ErrorResponse is the RFC 6749 section 5.2 error body
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func setJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
}

// writeError sends an OAuth error body with the given status
func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, ErrorResponse{
		Error:            code,
		ErrorDescription: strings.TrimSpace(description),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		setJSONHeaders(w)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"server_error","error_description":"Failed to encode response"}`))
		return
	}
	setJSONHeaders(w)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
