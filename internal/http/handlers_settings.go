package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"saldo/internal/log"
)

type connectivityRequest struct {
	Online *bool `json:"online" validate:"required"`
}

type connectivity struct {
	Online bool `json:"online"`
}

type preferenceRequest struct {
	Value string `json:"value" validate:"max=200"`
}

type preference struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	success(w, s.ws.Catalog(), log.FromContext(r.Context()).Slog())
}

func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	success(w, connectivity{Online: s.ws.Online()}, log.FromContext(r.Context()).Slog())
}

// handleSetConnectivity switches between online and offline mode. Going
// online does not push pending writes; clients call sync per month.
func (s *Server) handleSetConnectivity(w http.ResponseWriter, r *http.Request) {
	var req connectivityRequest
	if err := s.decode(r, &req); err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	s.ws.SetOnline(*req.Online)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Network mode changed", "online", *req.Online)
	success(w, connectivity{Online: *req.Online}, log.FromContext(r.Context()).Slog())
}

func (s *Server) handleGetPreference(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	value, ok, err := s.ws.Preference(name)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	if !ok {
		errorResponse(w, http.StatusNotFound, "preference not set", nil, log.FromContext(r.Context()).Slog())
		return
	}
	success(w, preference{Name: name, Value: value}, log.FromContext(r.Context()).Slog())
}

func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req preferenceRequest
	if err := s.decode(r, &req); err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	if err := s.ws.SetPreference(name, req.Value); err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	success(w, preference{Name: name, Value: req.Value}, log.FromContext(r.Context()).Slog())
}

// handleLogout wipes the device's offline data.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	n, err := s.ws.Logout(r.Context())
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	success(w, map[string]int{"removed": n}, log.FromContext(r.Context()).Slog())
}
