package api

import (
	"fmt"
	"net/http"

	"github.com/trogers1052/mse-market-data/internal/query"
)

// ListSignals handles GET /signals with optional issuerCode and timeframe parameters
func (h *Handler) ListSignals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	signals, err := h.querier.ListSignals(r.Context(), query.SignalFilter{
		IssuerCode: q.Get("issuerCode"),
		Timeframe:  q.Get("timeframe"),
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, signals)
}

// GetSignal handles GET /signals/{id}
func (h *Handler) GetSignal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	signal, err := h.querier.GetSignal(r.Context(), id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if signal == nil {
		respondError(w, r, http.StatusNotFound, fmt.Sprintf("signal %d not found", id))
		return
	}
	respondJSON(w, http.StatusOK, signal)
}
