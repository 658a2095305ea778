package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/voyagen/reelvault/api"
	"github.com/voyagen/reelvault/internal/cache"
	"github.com/voyagen/reelvault/internal/config"
	"github.com/voyagen/reelvault/internal/fetcher"
	"github.com/voyagen/reelvault/internal/log"
	"github.com/voyagen/reelvault/internal/models"
	"github.com/voyagen/reelvault/internal/service"
	"github.com/voyagen/reelvault/internal/store"
	"github.com/voyagen/reelvault/internal/tmdb"
	"github.com/voyagen/reelvault/internal/web"
)

// Server holds dependencies for the site and the JSON API.
type Server struct {
	catalog  *service.Catalog
	store    store.Store  // nil disables the sources API
	rds      *cache.Redis // nil disables async refresh
	renderer *web.Renderer
	cfg      *config.Config
	mux      *http.ServeMux
	logger   zerolog.Logger
}

// New creates a Server and registers routes.
func New(cat *service.Catalog, s store.Store, rds *cache.Redis, renderer *web.Renderer, cfg *config.Config) *Server {
	srv := &Server{
		catalog:  cat,
		store:    s,
		rds:      rds,
		renderer: renderer,
		cfg:      cfg,
		mux:      http.NewServeMux(),
		logger:   log.WithComponent("server"),
	}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	// Pages
	s.mux.HandleFunc("GET /{$}", s.handleHomePage)
	s.mux.HandleFunc("GET /play/{id}", s.handleMoviePage)
	s.mux.HandleFunc("GET /player/{id}", s.handleMoviePage)
	s.mux.HandleFunc("GET /play/tv/{id}", s.handleTVPage)
	s.mux.HandleFunc("GET /live", s.handleLivePage)

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Metadata
	s.mux.HandleFunc("GET /api/trending", s.handleTrending)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/movie/{id}", s.handleMovie)
	s.mux.HandleFunc("GET /api/tv/{id}", s.handleTV)

	// Live TV
	s.mux.HandleFunc("GET /api/iptv", s.handleIPTV)

	// Sources
	s.mux.HandleFunc("GET /api/sources", s.handleListSources)
	s.mux.HandleFunc("POST /api/sources", s.handleAddSource)
	s.mux.HandleFunc("GET /api/sources/{id}", s.handleGetSource)
	s.mux.HandleFunc("PATCH /api/sources/{id}", s.handleUpdateSource)
	s.mux.HandleFunc("DELETE /api/sources/{id}", s.handleDeleteSource)
	s.mux.HandleFunc("POST /api/sources/{id}/refresh", s.handleRefreshSource)
	s.mux.HandleFunc("GET /api/sources/{id}/channels", s.handleListChannels)

	s.mux.Handle("GET /metrics", promhttp.Handler())

	// Docs
	s.mux.HandleFunc("GET /api/docs", handleSwaggerUI)
	s.mux.HandleFunc("GET /api/docs/openapi.yaml", handleOpenAPISpec)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return withCORS(s.withLogging(withMetrics(s)))
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server is shut down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.cfg.ServerPort
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"store":  s.store != nil,
		"redis":  s.rds != nil,
	})
}

// --- metadata handlers ---

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mediaType := q.Get("type")
	switch mediaType {
	case "", models.MediaTypeAll, models.MediaTypeMovie, models.MediaTypeTV:
	default:
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid type: %s (use all, movie or tv)", mediaType))
		return
	}
	window := q.Get("window")
	switch window {
	case "", models.WindowDay, models.WindowWeek:
	default:
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid window: %s (use day or week)", window))
		return
	}

	titles, err := s.catalog.Trending(r.Context(), mediaType, window)
	if err != nil {
		s.writeUpstreamErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(titles))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("q parameter is required"))
		return
	}

	titles, err := s.catalog.Search(r.Context(), query)
	if err != nil {
		s.writeUpstreamErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(titles))
}

func (s *Server) handleMovie(w http.ResponseWriter, r *http.Request) {
	s.writeTitle(w, r, s.catalog.Movie)
}

func (s *Server) handleTV(w http.ResponseWriter, r *http.Request) {
	s.writeTitle(w, r, s.catalog.TV)
}

func (s *Server) writeTitle(w http.ResponseWriter, r *http.Request, load func(context.Context, int64) (*models.Title, error)) {
	id, err := parseID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	t, err := load(r.Context(), id)
	if err != nil {
		s.writeUpstreamErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// --- live TV handlers ---

func (s *Server) handleIPTV(w http.ResponseWriter, r *http.Request) {
	playlistURL, err := s.playlistURL(r)
	if err != nil {
		writeErr(w, playlistURLStatus(err), err)
		return
	}

	channels, err := s.catalog.LiveChannels(r.Context(), playlistURL)
	if err != nil {
		s.writeUpstreamErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(channels))
}

var errOverrideDisabled = errors.New("url override is disabled; only the configured playlist is served")

// playlistURL returns the ?url= override, when allowed, or the configured
// default.
func (s *Server) playlistURL(r *http.Request) (string, error) {
	raw := r.URL.Query().Get("url")
	if raw != "" && !s.cfg.AllowPlaylistOverride {
		return "", errOverrideDisabled
	}
	if raw == "" {
		raw = s.cfg.IPTVPlaylistURL
	}
	if raw == "" {
		return "", fmt.Errorf("url parameter is required (no default playlist configured)")
	}
	if err := validateHTTPURL(raw); err != nil {
		return "", err
	}
	return raw, nil
}

func playlistURLStatus(err error) int {
	if errors.Is(err, errOverrideDisabled) {
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}

// --- helpers ---

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// statusClientClosedRequest is the nginx convention for a request the client
// abandoned before a response was ready.
const statusClientClosedRequest = 499

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var apiErr *tmdb.APIError
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case fetcher.IsRetrievalError(err):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrNotFound), errors.Is(err, tmdb.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cache.ErrLocked), errors.Is(err, service.ErrSourceDisabled), errors.Is(err, store.ErrDuplicateName):
		return http.StatusConflict
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeUpstreamErr(w http.ResponseWriter, err error) {
	writeErr(w, statusFor(err), err)
}

func validateHTTPURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be a valid http or https URL")
	}
	return nil
}

// parseID extracts a path parameter by name and parses it as int64.
func parseID(r *http.Request, param string) (int64, error) {
	v := r.PathValue(param)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %s", param, v)
	}
	return id, nil
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithComponent("server").Warn().Err(err).Msg("writeJSON")
	}
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		log.WithComponent("server").Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, APIError{
		Status: status,
		Error:  http.StatusText(status),
		Detail: err.Error(),
	})
}

// writeHTML renders a page into memory first so a template failure still
// produces a clean 500.
func (s *Server) writeHTML(w http.ResponseWriter, status int, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		s.logger.Error().Err(err).Msg("render page")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// --- docs handlers ---

func handleOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(api.OpenAPISpec)
}

func handleSwaggerUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, swaggerUIHTML)
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>ReelVault API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
  <style>body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/api/docs/openapi.yaml",
      dom_id: "#swagger-ui",
      presets: [SwaggerUIBundle.presets.apis],
    });
  </script>
</body>
</html>`
