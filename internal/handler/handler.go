package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"transitrisk/internal/config"
	"transitrisk/internal/dashboard"
	"transitrisk/internal/gtfs"
	"transitrisk/internal/risk"
	"transitrisk/internal/templates"
)

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	session *dashboard.Session
	cfg     *config.Config
	logger  *slog.Logger
}

// New creates a Handler.
func New(session *dashboard.Session, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{session: session, cfg: cfg, logger: logger}
}

// page creates a templates.Page for the given title and path.
func (h *Handler) page(title, currentPath string) templates.Page {
	return templates.Page{Title: title, CurrentPath: currentPath}
}

// month reads ?month=, defaulting to the configured month.
func (h *Handler) month(r *http.Request) (int, error) {
	v := r.URL.Query().Get("month")
	if v == "" {
		return h.cfg.Month, nil
	}
	m, err := strconv.Atoi(v)
	if err != nil {
		return 0, dashboard.ErrInvalidMonth
	}
	return m, dashboard.CheckMonth(m)
}

// status maps a session error to an HTTP status code.
func status(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrInvalidMonth):
		return http.StatusBadRequest
	case errors.Is(err, gtfs.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, risk.ErrPredictionFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Dataset string `json:"dataset,omitempty"`
}

// fail writes err as a JSON error response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := status(err)
	body := errorBody{Error: err.Error()}
	var de *gtfs.DataError
	if errors.As(err, &de) {
		body.Dataset = de.Dataset
	}
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "status", code, "error", err)
	} else {
		h.logger.Warn("request rejected", "path", r.URL.Path, "status", code, "error", err)
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
