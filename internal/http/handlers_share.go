package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"saldo/internal/log"
)

type shareRequest struct {
	Name string `json:"name" validate:"max=100"`
}

// handleCreateShare freezes the tab in the path into a public snapshot.
func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	var req shareRequest
	if err := s.decode(r, &req); err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	snap, err := s.ws.Share(r.Context(), year, month, tabParam(r), req.Name)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Share created",
		log.FieldShareID, snap.ID, log.FieldYear, year, log.FieldMonth, month)
	created(w, snap, log.FromContext(r.Context()).Slog())
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	list, err := s.ws.Shares(r.Context())
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	success(w, list, log.FromContext(r.Context()).Slog())
}

func (s *Server) handleDeleteShare(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.DeleteShare(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	noContent(w)
}

// handlePublicShare serves a snapshot to anyone holding its id. Expired
// and unknown ids both answer 404.
func (s *Server) handlePublicShare(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ws.PublicShare(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	// snapshots can be deleted or expire at any time; caches must revalidate
	w.Header().Set("Cache-Control", "no-cache")
	success(w, snap, log.FromContext(r.Context()).Slog())
}
