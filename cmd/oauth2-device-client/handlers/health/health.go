package health

import (
	"context"
	"net/http"

	"github.com/wrale/oauth2-device-client/cmd/oauth2-device-client/handlers/common"
	"github.com/wrale/oauth2-device-client/internal/deviceflow"
)

// Checker reports whether a dependency is reachable
type Checker interface {
	CheckHealth(ctx context.Context) error
}

// Flow is the part of the device flow the health check reads
type Flow interface {
	Checker
	State() deviceflow.State
}

// Handler processes health check requests
type Handler struct {
	flow    Flow
	checks  map[string]Checker
	version string
}

// Response represents the health check response.
// Version is omitted when empty.
type Response struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	State   string         `json:"state"`
	Details map[string]any `json:"details,omitempty"`
}

// New creates a new health check handler
func New(flow Flow) *Handler {
	return &Handler{
		flow:    flow,
		checks:  map[string]Checker{"device_flow": flow},
		version: "unknown",
	}
}

// WithVersion sets the version for health check responses
func (h *Handler) WithVersion(version string) *Handler {
	h.version = version
	return h
}

// WithCheck adds a named dependency to the report
func (h *Handler) WithCheck(name string, c Checker) *Handler {
	h.checks[name] = c
	return h
}

// ServeHTTP handles health check requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := Response{
		Status:  "healthy",
		Version: h.version,
		State:   h.flow.State().String(),
		Details: make(map[string]any, len(h.checks)),
	}

	for name, c := range h.checks {
		if err := c.CheckHealth(r.Context()); err != nil {
			response.Status = "unhealthy"
			response.Details[name] = map[string]any{
				"status":  "unhealthy",
				"message": err.Error(),
			}
			continue
		}
		response.Details[name] = map[string]any{"status": "healthy"}
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	common.WriteJSON(w, status, response)
}
