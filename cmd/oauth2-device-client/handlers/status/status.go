// Package status serves the local device authorization status page
package status

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/templates"
)

// Flow is the part of the device flow shown on the page
type Flow interface {
	State() deviceflow.State
	Authorization() *deviceflow.DeviceAuthorization
	Err() error
	Cancel() bool
}

// TokenIssuer issues CSRF tokens for the cancel form
type TokenIssuer interface {
	GenerateToken(ctx context.Context) (string, error)
}

// Config contains handler dependencies
type Config struct {
	Flow      Flow
	Templates *templates.Templates
	CSRF      TokenIssuer
	Logger    *zap.Logger
}

// Handler renders the status page and handles cancellation
type Handler struct {
	flow      Flow
	templates *templates.Templates
	csrf      TokenIssuer
	logger    *zap.Logger
}

// New creates a status handler
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		flow:      cfg.Flow,
		templates: cfg.Templates,
		csrf:      cfg.CSRF,
		logger:    logger,
	}
}

// Page renders the current device authorization
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	state := h.flow.State()
	data := templates.DeviceData{State: state.String()}

	if err := h.flow.Err(); err != nil {
		data.Error = err.Error()
	}

	if da := h.flow.Authorization(); da != nil {
		data.UserCode = da.UserCode
		data.VerificationURI = da.DisplayURI()
		data.ExpiresAt = da.Deadline()
		data.Running = !state.Terminal()

		qr, err := templates.GenerateQRCode(data.VerificationURI)
		if err != nil {
			h.logger.Warn("generating QR code", zap.Error(err))
		}
		data.QRCode = qr
	}

	if data.Running {
		token, err := h.csrf.GenerateToken(r.Context())
		if err != nil {
			h.logger.Error("generating csrf token", zap.Error(err))
			h.renderError(w, http.StatusInternalServerError, "Server Error", "Unable to render the page, please retry.")
			return
		}
		data.CSRFToken = token
	}

	sw := h.templates.NewSafeWriter(w)
	if err := h.templates.RenderDevice(sw, data); err != nil {
		h.logger.Error("rendering device page", zap.Error(err))
		if !sw.Written() {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

// Cancel aborts the running flow and redirects back to the page
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !h.flow.Cancel() {
		h.renderError(w, http.StatusConflict, "Nothing to Cancel", "No device authorization is in progress.")
		return
	}
	h.logger.Info("device flow cancelled from status page")
	http.Redirect(w, r, "/device", http.StatusSeeOther)
}

func (h *Handler) renderError(w http.ResponseWriter, status int, title, message string) {
	sw := h.templates.NewSafeWriter(w)
	sw.SetStatusCode(status)
	if err := h.templates.RenderError(sw, templates.ErrorData{Title: title, Message: message}); err != nil {
		h.logger.Error("rendering error page", zap.Error(err))
		if !sw.Written() {
			http.Error(w, message, status)
		}
	}
}
