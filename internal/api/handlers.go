package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/trogers1052/mse-market-data/internal/database"
	"github.com/trogers1052/mse-market-data/internal/ingest"
	"github.com/trogers1052/mse-market-data/internal/models"
	"github.com/trogers1052/mse-market-data/internal/numeric"
	"github.com/trogers1052/mse-market-data/internal/query"
)

// IdempotencyKeyHeader optionally names a batch so retries are not appended twice
const IdempotencyKeyHeader = "Idempotency-Key"

// maxBatchBytes bounds the body of a batch POST
const maxBatchBytes = 32 << 20

// Ingester writes batches of records
type Ingester interface {
	Ingest(ctx context.Context, kind ingest.Kind, key string, records json.RawMessage) ingest.Result
}

// Querier serves reads and single issuer maintenance
type Querier interface {
	ListIssuers(ctx context.Context) ([]*models.Issuer, error)
	GetIssuer(ctx context.Context, code string) (*models.Issuer, error)
	UpsertIssuer(ctx context.Context, code string, issuer *models.Issuer) (bool, error)
	DeleteIssuer(ctx context.Context, code string) error
	ListHistoricalData(ctx context.Context, f query.HistoricalDataFilter) ([]*models.HistoricalDataPoint, error)
	GetHistoricalDataPoint(ctx context.Context, id int64) (*models.HistoricalDataPoint, error)
	GetHistoricalValues(ctx context.Context, id int64) (*numeric.Values, error)
	ListSignals(ctx context.Context, f query.SignalFilter) ([]*models.Signal, error)
	GetSignal(ctx context.Context, id int64) (*models.Signal, error)
}

// Pinger reports whether the store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// EventPublisher announces issuer changes
type EventPublisher interface {
	PublishIssuerUpserted(ctx context.Context, issuer *models.Issuer) error
	PublishIssuerDeleted(ctx context.Context, code string) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	ingester  Ingester
	querier   Querier
	health    Pinger
	publisher EventPublisher
}

// NewHandler creates a new Handler. publisher may be nil.
func NewHandler(ingester Ingester, querier Querier, health Pinger, publisher EventPublisher) *Handler {
	return &Handler{
		ingester:  ingester,
		querier:   querier,
		health:    health,
		publisher: publisher,
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ingestResponse is the body returned for a successful batch
type ingestResponse struct {
	Message  string `json:"message"`
	Count    int    `json:"count"`
	Replayed bool   `json:"replayed"`
}

// ingestBatch returns a handler that reads a JSON array body and ingests it as one batch of kind
func (h *Handler) ingestBatch(kind ingest.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBatchBytes))
		if err != nil {
			res := ingest.Result{Kind: kind, Err: fmt.Errorf("%w: failed to read request body: %v", ingest.ErrInvalidBatch, err)}
			respondError(w, r, http.StatusBadRequest, res.Message())
			return
		}
		if len(body) == 0 {
			res := ingest.Result{Kind: kind, Err: fmt.Errorf("%w: request body is empty", ingest.ErrInvalidBatch)}
			respondError(w, r, http.StatusBadRequest, res.Message())
			return
		}

		res := h.ingester.Ingest(r.Context(), kind, r.Header.Get(IdempotencyKeyHeader), json.RawMessage(body))
		if !res.OK() {
			respondError(w, r, errorStatus(res.Err), res.Message())
			return
		}
		respondJSON(w, http.StatusOK, ingestResponse{
			Message:  res.Message(),
			Count:    res.Count,
			Replayed: res.Replayed,
		})
	}
}

func (h *Handler) publish(fn func() error, code string) {
	if h.publisher == nil {
		return
	}
	if err := fn(); err != nil {
		log.Warn().Err(err).Str("issuer_code", code).Msg("Failed to publish issuer event")
	}
}

// errorStatus maps service errors onto HTTP status codes
func errorStatus(err error) int {
	var (
		parseErr   *query.ParseError
		storageErr *database.StorageError
	)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrConflict), errors.Is(err, ingest.ErrBatchInProgress):
		return http.StatusConflict
	case errors.Is(err, ingest.ErrInvalidBatch), errors.Is(err, query.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &storageErr) && storageErr.RowRejected():
		// PostgreSQL refused a value, e.g. one longer than its column
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", query.ErrInvalidRequest, mux.Vars(r)["id"])
	}
	return id, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error":      message,
		"request_id": RequestIDFromContext(r.Context()),
	})
}

// respondErr writes err with the status errorStatus assigns to it
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, errorStatus(err), err.Error())
}
