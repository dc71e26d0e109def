package http

import (
	"net/http"

	"pharmapos/internal/domain"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sale, err := h.svc.CreateSale(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "product")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Sale completed successfully",
		"id":      sale.ID,
		"sale":    sale,
	})
}

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListSales(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sale, err := h.svc.GetSale(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "sale")
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

type resetDataRequest struct {
	TabType string `json:"tabType"`
}

func (h *Handler) ResetData(w http.ResponseWriter, r *http.Request) {
	var req resetDataRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	plan, err := h.svc.ResetData(r.Context(), req.TabType)
	if err != nil {
		writeServiceError(w, err, "data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": plan.Summary()})
}

func (h *Handler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	rng, err := h.svc.ParseDateRange(query.Get("from"), query.Get("to"))
	if err != nil {
		writeServiceError(w, err, "report")
		return
	}
	summary, err := h.svc.SalesSummary(r.Context(), rng)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) DailySales(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	rng, err := h.svc.ParseDateRange(query.Get("from"), query.Get("to"))
	if err != nil {
		writeServiceError(w, err, "report")
		return
	}
	items, err := h.svc.DailySales(r.Context(), rng)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (h *Handler) CategoryStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.CategoryStock(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := parseOptionalInt(query.Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rng, err := h.svc.ParseDateRange(query.Get("from"), query.Get("to"))
	if err != nil {
		writeServiceError(w, err, "report")
		return
	}
	items, err := h.svc.TopSellers(r.Context(), rng, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold, err := parseIntParam(r.URL.Query().Get("threshold"), "threshold")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.svc.LowStock(r.Context(), threshold)
	if err != nil {
		writeServiceError(w, err, "product")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (h *Handler) OutOfStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.OutOfStock(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (h *Handler) ExpiryAlerts(w http.ResponseWriter, r *http.Request) {
	days, err := parseIntParam(r.URL.Query().Get("days"), "days")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := h.svc.ExpiryReport(r.Context(), days)
	if err != nil {
		writeServiceError(w, err, "product")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
