package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-client/cmd/oauth2-device-client/handlers/common"
	"github.com/wrale/oauth2-device-client/cmd/oauth2-device-client/handlers/health"
	"github.com/wrale/oauth2-device-client/cmd/oauth2-device-client/handlers/status"
	"github.com/wrale/oauth2-device-client/internal/csrf"
	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/templates"
)

const (
	requestTimeout    = 30 * time.Second
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	writeTimeout      = 35 * time.Second
	idleTimeout       = 60 * time.Second
)

type server struct {
	router *chi.Mux
	logger *zap.Logger
}

func newServer(flow *deviceflow.Flow, csrfManager *csrf.Manager, registry *prometheus.Registry, logger *zap.Logger) (*server, error) {
	tmpls, err := templates.LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	srv := &server{
		router: chi.NewRouter(),
		logger: logger,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(srv.logRequests)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.Timeout(requestTimeout))

	srv.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		common.WriteError(w, http.StatusNotFound, "not_found", "No route for "+r.URL.Path)
	})
	srv.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		common.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not supported on "+r.URL.Path)
	})

	healthHandler := health.New(flow).
		WithVersion(Version).
		WithCheck("csrf", csrfManager)
	statusHandler := status.New(status.Config{
		Flow:      flow,
		Templates: tmpls,
		CSRF:      csrfManager,
		Logger:    logger,
	})

	srv.router.Method(http.MethodGet, "/health", healthHandler)
	srv.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/device", http.StatusFound)
	})
	srv.router.Get("/device", statusHandler.Page)
	srv.router.With(csrfManager.Protect).Post("/device/cancel", statusHandler.Cancel)

	return srv, nil
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *server) httpServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ErrorLog:          zap.NewStdLog(s.logger.Named("http")),
	}
}
