package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"saldo/internal/app"
	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/monthly"
	"saldo/internal/tabs"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	// Warning is set when the change was kept locally but the remote store
	// could not be reached.
	Warning string `json:"warning,omitempty"`
	Success bool   `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, env Envelope, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil && logger != nil {
		logger.Error("Failed to encode JSON response", log.FieldError, err)
	}
}

func respond(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	writeJSON(w, status, Envelope{Data: data, Success: status < 400}, logger)
}

func success(w http.ResponseWriter, data any, logger *slog.Logger) {
	respond(w, http.StatusOK, data, logger)
}

func created(w http.ResponseWriter, data any, logger *slog.Logger) {
	respond(w, http.StatusCreated, data, logger)
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func errorResponse(w http.ResponseWriter, status int, message string, data any, logger *slog.Logger) {
	writeJSON(w, status, Envelope{Error: message, Data: data}, logger)
}

// amountDetail accompanies a rejected payment so the UI can show the limit.
type amountDetail struct {
	Max core.Money `json:"max"`
}

// handleError maps err onto a status code. data is what the caller would
// have returned on success; it is sent with 202 when only the remote write
// failed and the change is held locally.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error, data any) {
	logger := log.FromContext(r.Context()).Slog()

	var (
		amountErr *core.AmountError
		valErr    *ValidationError
	)
	switch {
	case errors.Is(err, core.ErrRemoteUnavailable) && !errors.Is(err, monthly.ErrNotApplied):
		logger.WarnContext(r.Context(), "Remote store unavailable, change kept on device", log.FieldError, err)
		writeJSON(w, http.StatusAccepted, Envelope{
			Data:    data,
			Warning: "saved on this device only; the remote store is unreachable",
			Success: true,
		}, logger)
	case errors.Is(err, monthly.ErrNotApplied):
		logger.WarnContext(r.Context(), "Change refused, no baseline available", log.FieldError, err)
		errorResponse(w, http.StatusServiceUnavailable, "remote store unavailable and no local copy of this month", nil, logger)
	case errors.Is(err, core.ErrUnauthenticated):
		errorResponse(w, http.StatusUnauthorized, "authentication required", nil, logger)
	case errors.As(err, &amountErr):
		errorResponse(w, http.StatusBadRequest, amountErr.Error(), amountDetail{Max: amountErr.Max}, logger)
	case errors.As(err, &valErr):
		errorResponse(w, http.StatusBadRequest, valErr.Error(), valErr.Fields, logger)
	case core.IsValidation(err), errors.Is(err, tabs.ErrEmptyLabel), errors.Is(err, app.ErrReservedPreference):
		errorResponse(w, http.StatusBadRequest, err.Error(), nil, logger)
	case errors.Is(err, core.ErrNotFound), errors.Is(err, tabs.ErrTabNotFound):
		errorResponse(w, http.StatusNotFound, err.Error(), nil, logger)
	case errors.Is(err, tabs.ErrMainTabPermanent):
		errorResponse(w, http.StatusConflict, err.Error(), nil, logger)
	default:
		logger.ErrorContext(r.Context(), "Unhandled error", log.FieldError, err)
		errorResponse(w, http.StatusInternalServerError, "internal server error", nil, logger)
	}
}
