package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/voyagen/reelvault/internal/cache"
	"github.com/voyagen/reelvault/internal/service"
	"github.com/voyagen/reelvault/internal/store"
)

var errNoStore = errors.New("playlist sources are not configured")

// requireStore writes 503 and returns false when no store is configured.
func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeErr(w, http.StatusServiceUnavailable, errNoStore)
		return false
	}
	return true
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	sources, err := s.store.ListSources(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sources))
}

type addSourceRequest struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	UserAgent string `json:"user_agent"`
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req addSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if req.URL == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("url is required"))
		return
	}
	if err := validateHTTPURL(req.URL); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" {
		req.Name = "m3u"
	}

	sourceID, err := s.store.CreateOrGetSource(r.Context(), req.Name, req.URL, req.UserAgent)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("create source: %w", err))
		return
	}

	// The source stays registered when the first ingest fails; a later
	// refresh can retry it.
	count, err := service.RefreshSource(r.Context(), s.store, s.rds, sourceID, s.cfg.FetchOptions())
	if err != nil {
		writeErr(w, statusFor(err), fmt.Errorf("ingest source %d: %w", sourceID, err))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"source_id":     sourceID,
		"channel_count": count,
	})
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	sourceID, err := parseID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	src, err := s.store.GetSourceByID(r.Context(), sourceID)
	if err != nil {
		writeSourceErr(w, sourceID, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

type updateSourceRequest struct {
	Name      *string `json:"name"`
	URL       *string `json:"url"`
	UserAgent *string `json:"user_agent"`
	Enabled   *bool   `json:"enabled"`
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	sourceID, err := parseID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	var req updateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if req.URL != nil {
		if err := validateHTTPURL(*req.URL); err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
	}

	fields := store.SourceUpdate{
		Name:      req.Name,
		URL:       req.URL,
		UserAgent: req.UserAgent,
		Enabled:   req.Enabled,
	}
	if err := s.store.UpdateSource(r.Context(), sourceID, fields); err != nil {
		writeSourceErr(w, sourceID, err)
		return
	}

	src, err := s.store.GetSourceByID(r.Context(), sourceID)
	if err != nil {
		writeSourceErr(w, sourceID, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	sourceID, err := parseID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	if err := s.store.DeleteSource(r.Context(), sourceID); err != nil {
		writeSourceErr(w, sourceID, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) handleRefreshSource(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	sourceID, err := parseID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		s.enqueueRefresh(w, r, sourceID)
		return
	}

	count, err := service.RefreshSource(r.Context(), s.store, s.rds, sourceID, s.cfg.FetchOptions())
	if err != nil {
		writeSourceErr(w, sourceID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source_id":     sourceID,
		"channel_count": count,
		"refreshed":     true,
	})
}

// enqueueRefresh hands the refresh to the background worker.
func (s *Server) enqueueRefresh(w http.ResponseWriter, r *http.Request, sourceID int64) {
	if s.rds == nil {
		writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("async refresh requires redis"))
		return
	}

	src, err := s.store.GetSourceByID(r.Context(), sourceID)
	if err != nil {
		writeSourceErr(w, sourceID, err)
		return
	}
	if !src.Enabled {
		writeSourceErr(w, sourceID, service.ErrSourceDisabled)
		return
	}
	if cache.IsLocked(r.Context(), s.rds, cache.RefreshLockKey(sourceID)) {
		writeSourceErr(w, sourceID, cache.ErrLocked)
		return
	}

	job := cache.RefreshJob{SourceID: src.ID, SourceName: src.Name}
	if err := cache.Enqueue(r.Context(), s.rds, cache.RefreshQueue, job); err != nil {
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("enqueue refresh: %w", err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"source_id": sourceID,
		"queued":    true,
	})
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	sourceID, err := parseID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	q := r.URL.Query()
	filter := store.ChannelFilter{
		SourceID: &sourceID,
		Search:   q.Get("search"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %s", v))
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid offset: %s", v))
			return
		}
		filter.Offset = n
	}
	// Normalize here too so the response reflects the values actually used.
	filter.Normalize()

	if _, err := s.store.GetSourceByID(r.Context(), sourceID); err != nil {
		writeSourceErr(w, sourceID, err)
		return
	}

	channels, total, err := s.store.ListChannels(r.Context(), filter)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"channels": nonNil(channels),
		"total":    total,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

// writeSourceErr maps store and refresh errors for a source to a response.
func writeSourceErr(w http.ResponseWriter, sourceID int64, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusNotFound:
		err = fmt.Errorf("source %d not found", sourceID)
	case http.StatusConflict:
		err = fmt.Errorf("source %d: %w", sourceID, err)
	}
	writeErr(w, status, err)
}
