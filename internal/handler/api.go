package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"transitrisk/internal/dashboard"
)

// KPIs serves the headline figures for ?month=.
func (h *Handler) KPIs(w http.ResponseWriter, r *http.Request) {
	month, err := h.month(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	k, err := h.session.KPIs(r.Context(), month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ratio, err := h.session.RemovalRatio(r.Context(), month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		dashboard.KPIs
		Ratio dashboard.Ratio `json:"ratio"`
	}{k, ratio})
}

// Trend serves the twelve-month removal rate.
func (h *Handler) Trend(w http.ResponseWriter, r *http.Request) {
	trend, err := h.session.MonthlyTrend(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

// Hourly serves trip counts by start hour.
func (h *Handler) Hourly(w http.ResponseWriter, r *http.Request) {
	v, err := h.session.HourlyTrips(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Stops serves stop coordinates and their extent.
func (h *Handler) Stops(w http.ResponseWriter, r *http.Request) {
	v, err := h.session.StopLocations(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Preview serves the first rows of ?month='s exceptions.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	month, err := h.month(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.session.Preview(r.Context(), month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Predict runs one prediction. A missing model is a normal 200 response
// with available=false.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	v, err := h.session.Predict(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ExportCSV downloads ?month='s exceptions as CSV.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "text/csv; charset=utf-8", dashboard.ExportFileName, h.session.ExportCSV)
}

// ExportXLSX downloads ?month='s exceptions as a workbook.
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"service_removed_data.xlsx", h.session.ExportXLSX)
}

// export buffers the whole file so a failure can still be reported with
// a proper status code.
func (h *Handler) export(w http.ResponseWriter, r *http.Request, contentType, filename string,
	write func(context.Context, int, io.Writer) error) {
	month, err := h.month(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := write(r.Context(), month, &buf); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.Write(buf.Bytes())
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"model":  h.session.Model(),
	})
}
