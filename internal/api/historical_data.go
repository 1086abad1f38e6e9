package api

import (
	"fmt"
	"net/http"

	"github.com/trogers1052/mse-market-data/internal/models"
	"github.com/trogers1052/mse-market-data/internal/query"
)

// ListHistoricalData handles GET /historical-data with optional issuerCode, from and to parameters
func (h *Handler) ListHistoricalData(w http.ResponseWriter, r *http.Request) {
	filter, err := historicalDataFilter(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	points, err := h.querier.ListHistoricalData(r.Context(), filter)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, points)
}

// ListHistoricalDataByIssuer handles GET /historical-data/byIssuer?issuerCode=X
func (h *Handler) ListHistoricalDataByIssuer(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("issuerCode") == "" {
		respondError(w, r, http.StatusBadRequest, "issuerCode is required")
		return
	}
	h.ListHistoricalData(w, r)
}

// GetHistoricalDataPoint handles GET /historical-data/{id}
func (h *Handler) GetHistoricalDataPoint(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	point, err := h.querier.GetHistoricalDataPoint(r.Context(), id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if point == nil {
		respondError(w, r, http.StatusNotFound, fmt.Sprintf("historical data %d not found", id))
		return
	}
	respondJSON(w, http.StatusOK, point)
}

// GetHistoricalValues handles GET /historical-data/{id}/values
func (h *Handler) GetHistoricalValues(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	values, err := h.querier.GetHistoricalValues(r.Context(), id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if values == nil {
		respondError(w, r, http.StatusNotFound, fmt.Sprintf("historical data %d not found", id))
		return
	}
	respondJSON(w, http.StatusOK, values)
}

func historicalDataFilter(r *http.Request) (query.HistoricalDataFilter, error) {
	q := r.URL.Query()
	filter := query.HistoricalDataFilter{IssuerCode: q.Get("issuerCode")}

	for param, dst := range map[string]*models.Date{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		d, err := models.ParseDate(raw)
		if err != nil {
			return filter, fmt.Errorf("%w: %s: %v", query.ErrInvalidRequest, param, err)
		}
		*dst = d
	}
	return filter, nil
}
