package server

import (
	"context"
	"io"
	"net/http"

	"github.com/voyagen/reelvault/internal/models"
)

func (s *Server) handleHomePage(w http.ResponseWriter, r *http.Request) {
	sections := s.catalog.HomeSections(r.Context())
	s.writeHTML(w, http.StatusOK, func(out io.Writer) error {
		return s.renderer.Home(out, sections)
	})
}

func (s *Server) handleMoviePage(w http.ResponseWriter, r *http.Request) {
	s.titlePage(w, r, "Movie", s.catalog.Movie)
}

func (s *Server) handleTVPage(w http.ResponseWriter, r *http.Request) {
	s.titlePage(w, r, "Show", s.catalog.TV)
}

func (s *Server) titlePage(w http.ResponseWriter, r *http.Request, noun string, load func(context.Context, int64) (*models.Title, error)) {
	id, err := parseID(r, "id")
	if err != nil {
		s.errorPage(w, http.StatusBadRequest, "Invalid "+noun+" ID")
		return
	}

	t, err := load(r.Context(), id)
	if err != nil {
		status := statusFor(err)
		msg := "Error fetching " + noun + " details"
		switch {
		case status == http.StatusNotFound:
			msg = noun + " Not Found"
		case status >= 500:
			s.logger.Error().Err(err).Int64("id", id).Msg("load title")
		}
		s.errorPage(w, status, msg)
		return
	}

	s.writeHTML(w, http.StatusOK, func(out io.Writer) error {
		return s.renderer.Play(out, t)
	})
}

func (s *Server) handleLivePage(w http.ResponseWriter, r *http.Request) {
	playlistURL, err := s.playlistURL(r)
	if err != nil {
		s.writeHTML(w, playlistURLStatus(err), func(out io.Writer) error {
			return s.renderer.Live(out, nil, err.Error())
		})
		return
	}

	channels, err := s.catalog.LiveChannels(r.Context(), playlistURL)
	if err != nil {
		s.logger.Warn().Err(err).Msg("live playlist unavailable")
		s.writeHTML(w, statusFor(err), func(out io.Writer) error {
			return s.renderer.Live(out, nil, "Playlist unavailable, try again later.")
		})
		return
	}

	s.writeHTML(w, http.StatusOK, func(out io.Writer) error {
		return s.renderer.Live(out, channels, "")
	})
}

func (s *Server) errorPage(w http.ResponseWriter, status int, msg string) {
	s.writeHTML(w, status, func(out io.Writer) error {
		return s.renderer.Error(out, msg)
	})
}
