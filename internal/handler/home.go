package handler

import (
	"net/http"

	"transitrisk/internal/templates"
)

// Home serves the dashboard page for ?month=.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	h.renderDashboard(w, r, false)
}

// PredictPage runs one prediction and re-renders the dashboard with it.
func (h *Handler) PredictPage(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, true)
}

func (h *Handler) renderDashboard(w http.ResponseWriter, r *http.Request, predict bool) {
	month, err := h.month(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	report, err := h.session.BuildReport(ctx, month, false)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	data := templates.DashboardData{
		Page:   h.page("Transit Service Disruption Dashboard", "/"),
		Report: report,
	}
	code := http.StatusOK
	if predict {
		p, err := h.session.Predict(ctx)
		if err != nil {
			data.PredictionError = "Prediction failed: " + err.Error()
			code = status(err)
		} else {
			report.Prediction = &p
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := templates.DashboardPage(data).Render(ctx, w); err != nil {
		h.logger.Error("render dashboard", "error", err)
	}
}
