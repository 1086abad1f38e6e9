package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/trogers1052/mse-market-data/internal/models"
)

// ListIssuers handles GET /issuers
func (h *Handler) ListIssuers(w http.ResponseWriter, r *http.Request) {
	issuers, err := h.querier.ListIssuers(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, issuers)
}

// GetIssuer handles GET /issuers/{code}
func (h *Handler) GetIssuer(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	issuer, err := h.querier.GetIssuer(r.Context(), code)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if issuer == nil {
		respondError(w, r, http.StatusNotFound, fmt.Sprintf("issuer %s not found", code))
		return
	}
	respondJSON(w, http.StatusOK, issuer)
}

// PutIssuer handles PUT /issuers/{code}
func (h *Handler) PutIssuer(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var issuer models.Issuer
	if err := json.NewDecoder(r.Body).Decode(&issuer); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.querier.UpsertIssuer(r.Context(), code, &issuer)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	h.publish(func() error { return h.publisher.PublishIssuerUpserted(r.Context(), &issuer) }, code)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, issuer)
}

// DeleteIssuer handles DELETE /issuers/{code}
func (h *Handler) DeleteIssuer(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	if err := h.querier.DeleteIssuer(r.Context(), code); err != nil {
		respondErr(w, r, err)
		return
	}

	h.publish(func() error { return h.publisher.PublishIssuerDeleted(r.Context(), code) }, code)

	respondJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Issuer %s deleted", code)})
}
