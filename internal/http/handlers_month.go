package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/monthly"
	"saldo/internal/spending"
)

type saveMonthRequest struct {
	Items []core.SpendingItem `json:"items" validate:"max=1000"`
}

type itemRequest struct {
	Name     string     `json:"name" validate:"required,max=200"`
	Amount   core.Money `json:"amount"`
	Category string     `json:"category" validate:"max=64"`
	Note     string     `json:"note" validate:"max=2000"`
}

type payAllRequest struct {
	Amount core.Money `json:"amount"`
}

// itemResult is the response of an item creation.
type itemResult struct {
	Item    core.SpendingItem `json:"item"`
	Dataset core.MonthDataset `json:"dataset"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	v, err := s.ws.View(r.Context(), year, month)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	success(w, v, log.FromContext(r.Context()).Slog())
}

// handleLoad refreshes the main tab from the remote store. A failed read
// answers 202 with the data kept on the device.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	v, err := s.ws.Load(r.Context(), year, month)
	if err != nil {
		s.handleError(w, r, err, v)
		return
	}
	success(w, v, log.FromContext(r.Context()).Slog())
}

func (s *Server) handleSaveMain(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	var req saveMonthRequest
	if err := s.decode(r, &req); err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	v, err := s.ws.SaveMain(r.Context(), year, month, core.MonthDataset{Items: req.Items})
	if err != nil {
		s.handleError(w, r, err, v)
		return
	}
	success(w, v, log.FromContext(r.Context()).Slog())
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	v, err := s.ws.SyncPending(r.Context(), year, month)
	if err != nil {
		s.handleError(w, r, err, v)
		return
	}
	success(w, v, log.FromContext(r.Context()).Slog())
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	var req itemRequest
	if err := s.decode(r, &req); err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	d, it, err := s.ws.AddItem(r.Context(), year, month, tabParam(r), spending.Draft{
		Name:     req.Name,
		Amount:   req.Amount,
		Category: req.Category,
		Note:     req.Note,
	})
	if err != nil {
		s.handleError(w, r, err, itemResult{Item: it, Dataset: d})
		return
	}
	created(w, itemResult{Item: it, Dataset: d}, log.FromContext(r.Context()).Slog())
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	var patch monthly.FieldPatch
	if err := s.decode(r, &patch); err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	d, err := s.ws.UpdateItem(r.Context(), year, month, tabParam(r), chi.URLParam(r, "itemID"), patch)
	if err != nil {
		s.handleError(w, r, err, d)
		return
	}
	success(w, d, log.FromContext(r.Context()).Slog())
}

func (s *Server) handlePayAll(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	var req payAllRequest
	if err := s.decode(r, &req); err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	d, err := s.ws.PayAll(r.Context(), year, month, tabParam(r), req.Amount)
	if err != nil {
		s.handleError(w, r, err, d)
		return
	}
	success(w, d, log.FromContext(r.Context()).Slog())
}

func (s *Server) handleSettleAll(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	d, err := s.ws.SettleAll(r.Context(), year, month, tabParam(r))
	if err != nil {
		s.handleError(w, r, err, d)
		return
	}
	success(w, d, log.FromContext(r.Context()).Slog())
}

func (s *Server) handleYearOverview(w http.ResponseWriter, r *http.Request) {
	year, err := strconvYear(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	months, err := s.ws.YearOverview(r.Context(), year)
	if err != nil {
		s.handleError(w, r, err, months)
		return
	}
	success(w, months, log.FromContext(r.Context()).Slog())
}

func (s *Server) handleOfflineMonths(w http.ResponseWriter, r *http.Request) {
	months, err := s.ws.OfflineMonths(r.Context())
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}
	success(w, months, log.FromContext(r.Context()).Slog())
}
