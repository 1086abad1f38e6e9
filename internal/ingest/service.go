// Package ingest writes batches of issuers, historical data points and signals as all-or-nothing units.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/trogers1052/mse-market-data/internal/models"
)

// Kind identifies the entity type carried by a batch
type Kind string

const (
	KindIssuer         Kind = "issuer"
	KindHistoricalData Kind = "historical_data"
	KindSignal         Kind = "signal"
)

// ParseKind accepts the wire names used on the ingestion topic and CLI
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindIssuer, KindHistoricalData, KindSignal:
		return k, nil
	case "issuers":
		return KindIssuer, nil
	case "historical-data", "historicaldata":
		return KindHistoricalData, nil
	case "signals":
		return KindSignal, nil
	}
	return "", fmt.Errorf("unknown record kind %q", s)
}

// label is the plural noun used in result messages
func (k Kind) label() string {
	switch k {
	case KindIssuer:
		return "issuers"
	case KindHistoricalData:
		return "historical data"
	case KindSignal:
		return "signals"
	}
	return string(k)
}

// Store is the batch write side of the entity store
type Store interface {
	CreateIssuerBatch(ctx context.Context, issuers []*models.Issuer) error
	CreateHistoricalDataBatch(ctx context.Context, points []*models.HistoricalDataPoint) error
	CreateSignalBatch(ctx context.Context, signals []*models.Signal) error
}

// Idempotency reserves batch keys so a redelivered batch is written at most once
type Idempotency interface {
	// Reserve returns false when the key's batch already completed, and ErrBatchInProgress when
	// another writer still holds the key
	Reserve(ctx context.Context, key string) (bool, error)
	Complete(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

// keyCleanupTimeout bounds Complete and Release, which run even after the request context is cancelled
const keyCleanupTimeout = 5 * time.Second

// Result is the whole-batch outcome of an ingestion call
type Result struct {
	Kind     Kind
	Count    int
	Replayed bool
	Err      error
}

// OK reports whether the batch was written or recognised as a replay
func (r Result) OK() bool {
	return r.Err == nil
}

// Message returns the confirmation or failure text reported to callers
func (r Result) Message() string {
	label := r.Kind.label()
	if label == "" {
		label = "records"
	}
	if r.Err != nil {
		return fmt.Sprintf("Failed to save %s: %v", label, r.Err)
	}
	return strings.ToUpper(label[:1]) + label[1:] + " saved successfully!"
}

// Service validates batches and hands them to the store in one transaction each
type Service struct {
	store       Store
	idempotency Idempotency
	validate    *validator.Validate
}

// NewService creates an ingestion service. idempotency may be nil, in which case keys are ignored.
func NewService(store Store, idempotency Idempotency) *Service {
	return &Service{
		store:       store,
		idempotency: idempotency,
		validate:    newValidator(),
	}
}

// IngestIssuers upserts a batch of issuers by code
func (s *Service) IngestIssuers(ctx context.Context, key string, issuers []*models.Issuer) Result {
	return s.run(ctx, KindIssuer, key, len(issuers),
		func() error { return validateAll(ctx, s.validate, issuers) },
		func() error { return s.store.CreateIssuerBatch(ctx, issuers) },
	)
}

// IngestHistoricalData appends a batch of historical data points
func (s *Service) IngestHistoricalData(ctx context.Context, key string, points []*models.HistoricalDataPoint) Result {
	return s.run(ctx, KindHistoricalData, key, len(points),
		func() error { return validateAll(ctx, s.validate, points) },
		func() error { return s.store.CreateHistoricalDataBatch(ctx, points) },
	)
}

// IngestSignals appends a batch of signals
func (s *Service) IngestSignals(ctx context.Context, key string, signals []*models.Signal) Result {
	return s.run(ctx, KindSignal, key, len(signals),
		func() error { return validateAll(ctx, s.validate, signals) },
		func() error { return s.store.CreateSignalBatch(ctx, signals) },
	)
}

// Ingest decodes a JSON array of records of the given kind and ingests it
func (s *Service) Ingest(ctx context.Context, kind Kind, key string, records json.RawMessage) Result {
	switch kind {
	case KindIssuer:
		var issuers []*models.Issuer
		if err := decode(records, &issuers); err != nil {
			return Result{Kind: kind, Err: err}
		}
		return s.IngestIssuers(ctx, key, issuers)
	case KindHistoricalData:
		var points []*models.HistoricalDataPoint
		if err := decode(records, &points); err != nil {
			return Result{Kind: kind, Err: err}
		}
		return s.IngestHistoricalData(ctx, key, points)
	case KindSignal:
		var signals []*models.Signal
		if err := decode(records, &signals); err != nil {
			return Result{Kind: kind, Err: err}
		}
		return s.IngestSignals(ctx, key, signals)
	}
	return Result{Kind: kind, Err: fmt.Errorf("%w: unknown record kind %q", ErrInvalidBatch, kind)}
}

func (s *Service) run(ctx context.Context, kind Kind, key string, n int, check, write func() error) Result {
	res := Result{Kind: kind}

	if err := check(); err != nil {
		res.Err = err
		log.Warn().Err(err).Str("kind", string(kind)).Int("records", n).Msg("Rejected invalid batch")
		return res
	}
	if n == 0 {
		return res
	}

	reserved := ""
	if key != "" && s.idempotency != nil {
		scoped := string(kind) + ":" + key
		fresh, err := s.idempotency.Reserve(ctx, scoped)
		if errors.Is(err, ErrBatchInProgress) {
			res.Err = err
			log.Warn().Str("kind", string(kind)).Str("idempotency_key", key).Msg("Batch with this key is still being written")
			return res
		}
		if err != nil {
			res.Err = fmt.Errorf("failed to reserve idempotency key: %w", err)
			log.Error().Err(err).Str("kind", string(kind)).Str("idempotency_key", key).Msg("Idempotency backend unavailable")
			return res
		}
		if !fresh {
			res.Replayed = true
			log.Info().Str("kind", string(kind)).Str("idempotency_key", key).Msg("Skipping replayed batch")
			return res
		}
		reserved = scoped
	}

	if err := write(); err != nil {
		res.Err = err
		log.Error().Err(err).Str("kind", string(kind)).Int("records", n).Msg("Batch write failed")
		if reserved != "" {
			s.settleKey(ctx, reserved, s.idempotency.Release, "Failed to release idempotency key")
		}
		return res
	}

	if reserved != "" {
		s.settleKey(ctx, reserved, s.idempotency.Complete, "Failed to mark idempotency key completed")
	}
	res.Count = n
	log.Info().Str("kind", string(kind)).Int("records", n).Msg("Batch ingested")
	return res
}

// settleKey completes or releases a reserved key on a context detached from ctx's cancellation
func (s *Service) settleKey(ctx context.Context, key string, fn func(context.Context, string) error, failure string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), keyCleanupTimeout)
	defer cancel()
	if err := fn(cleanupCtx, key); err != nil {
		log.Warn().Err(err).Str("idempotency_key", key).Msg(failure)
	}
}

func decode(records json.RawMessage, dst interface{}) error {
	if len(records) == 0 {
		return nil
	}
	if err := json.Unmarshal(records, dst); err != nil {
		return fmt.Errorf("%w: malformed records: %v", ErrInvalidBatch, err)
	}
	return nil
}

var (
	// ErrInvalidBatch marks batches rejected before anything was written
	ErrInvalidBatch = errors.New("invalid batch")
	// ErrBatchInProgress is returned when a batch with the same idempotency key is still being written
	ErrBatchInProgress = errors.New("batch with this idempotency key is still being written")
)

// ValidationError describes the first record of a batch that failed structural validation
type ValidationError struct {
	Index int
	Field string
	Tag   string
	Param string
}

func (e *ValidationError) Error() string {
	switch e.Tag {
	case "required":
		return fmt.Sprintf("record %d: %s is required", e.Index, e.Field)
	case "max":
		return fmt.Sprintf("record %d: %s must be at most %s characters", e.Index, e.Field, e.Param)
	}
	return fmt.Sprintf("record %d: %s failed %s validation", e.Index, e.Field, e.Tag)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidBatch
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Date is a struct; validate it as its ISO string so "required" rejects the zero date
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(models.Date); ok {
			return d.String()
		}
		return nil
	}, models.Date{})
	return v
}

func validateAll[T any](ctx context.Context, v *validator.Validate, records []*T) error {
	for n, rec := range records {
		if rec == nil {
			return &ValidationError{Index: n, Field: "record", Tag: "required"}
		}
		if err := v.StructCtx(ctx, rec); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
				fe := fieldErrs[0]
				return &ValidationError{Index: n, Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()}
			}
			return fmt.Errorf("%w: record %d: %v", ErrInvalidBatch, n, err)
		}
	}
	return nil
}
