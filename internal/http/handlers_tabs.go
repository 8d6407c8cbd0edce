package http

import (
	"net/http"

	"saldo/internal/app"
	"saldo/internal/log"
)

type tabRequest struct {
	Label string `json:"label" validate:"max=60"`
}

type selectTabRequest struct {
	Index *int `json:"index" validate:"required,gte=0"`
}

// tabView runs op on the month named by the path and writes the view.
func (s *Server) tabView(w http.ResponseWriter, r *http.Request, status int, op func(year, month int) (app.View, error)) {
	year, month, err := yearMonth(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	v, err := op(year, month)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	respond(w, status, v, log.FromContext(r.Context()).Slog())
}

func (s *Server) handleAddTab(w http.ResponseWriter, r *http.Request) {
	var req tabRequest
	if err := s.decode(r, &req); err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	s.tabView(w, r, http.StatusCreated, func(year, month int) (app.View, error) {
		return s.ws.AddTab(r.Context(), year, month, req.Label)
	})
}

func (s *Server) handleRenameTab(w http.ResponseWriter, r *http.Request) {
	var req tabRequest
	if err := s.decode(r, &req); err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	s.tabView(w, r, http.StatusOK, func(year, month int) (app.View, error) {
		return s.ws.RenameTab(r.Context(), year, month, tabParam(r), req.Label)
	})
}

func (s *Server) handleDeleteTab(w http.ResponseWriter, r *http.Request) {
	s.tabView(w, r, http.StatusOK, func(year, month int) (app.View, error) {
		return s.ws.DeleteTab(r.Context(), year, month, tabParam(r))
	})
}

func (s *Server) handleSelectTab(w http.ResponseWriter, r *http.Request) {
	var req selectTabRequest
	if err := s.decode(r, &req); err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	s.tabView(w, r, http.StatusOK, func(year, month int) (app.View, error) {
		return s.ws.SelectTab(r.Context(), year, month, *req.Index)
	})
}
