// Package query serves the read paths over the entity store plus single-record issuer maintenance.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/trogers1052/mse-market-data/internal/database"
	"github.com/trogers1052/mse-market-data/internal/models"
	"github.com/trogers1052/mse-market-data/internal/numeric"
)

// Store is the read side of the entity store plus issuer upsert and delete
type Store interface {
	UpsertIssuer(ctx context.Context, issuer *models.Issuer) (bool, error)
	GetIssuer(ctx context.Context, code string) (*models.Issuer, error)
	ListIssuers(ctx context.Context) ([]*models.Issuer, error)
	DeleteIssuer(ctx context.Context, code string) error

	GetHistoricalDataByID(ctx context.Context, id int64) (*models.HistoricalDataPoint, error)
	ListHistoricalData(ctx context.Context) ([]*models.HistoricalDataPoint, error)
	ListHistoricalDataByIssuer(ctx context.Context, issuerCode string, r database.DateRange) ([]*models.HistoricalDataPoint, error)

	GetSignalByID(ctx context.Context, id int64) (*models.Signal, error)
	ListSignals(ctx context.Context) ([]*models.Signal, error)
	ListSignalsByIssuer(ctx context.Context, issuerCode, timeframe string) ([]*models.Signal, error)
}

// ErrInvalidRequest marks queries and issuer writes rejected before reaching the store
var ErrInvalidRequest = errors.New("invalid request")

// HistoricalDataFilter narrows a historical data listing. The zero value lists everything.
type HistoricalDataFilter struct {
	IssuerCode string
	From       models.Date
	To         models.Date
}

// SignalFilter narrows a signal listing. Timeframe only applies together with IssuerCode.
type SignalFilter struct {
	IssuerCode string
	Timeframe  string
}

// Service answers list, point and per-issuer queries. Absent point reads return (nil, nil).
type Service struct {
	store    Store
	validate *validator.Validate
}

// NewService creates a query service over the given store
func NewService(store Store) *Service {
	return &Service{store: store, validate: validator.New()}
}

// ListIssuers returns every issuer ordered by code
func (s *Service) ListIssuers(ctx context.Context) ([]*models.Issuer, error) {
	return s.store.ListIssuers(ctx)
}

// GetIssuer returns the issuer with the given code, or nil if there is none
func (s *Service) GetIssuer(ctx context.Context, code string) (*models.Issuer, error) {
	return absentAsNil(s.store.GetIssuer(ctx, code))
}

// UpsertIssuer stores issuer under code. The body code may be empty, in which case the path code is used;
// a different non-empty body code is a conflict.
func (s *Service) UpsertIssuer(ctx context.Context, code string, issuer *models.Issuer) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, fmt.Errorf("%w: issuer code is required", ErrInvalidRequest)
	}
	if issuer.Code != "" && issuer.Code != code {
		return false, fmt.Errorf("issuer code %q does not match %q: %w", issuer.Code, code, database.ErrConflict)
	}
	if strings.TrimSpace(issuer.Name) == "" {
		return false, fmt.Errorf("%w: issuer name is required", ErrInvalidRequest)
	}
	issuer.Code = code
	if err := s.validate.StructCtx(ctx, issuer); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return false, fmt.Errorf("%w: issuer %s failed %s=%s validation", ErrInvalidRequest, strings.ToLower(fe.Field()), fe.Tag(), fe.Param())
		}
		return false, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return s.store.UpsertIssuer(ctx, issuer)
}

// DeleteIssuer removes an issuer; database.ErrNotFound is returned when the code is unknown
func (s *Service) DeleteIssuer(ctx context.Context, code string) error {
	return s.store.DeleteIssuer(ctx, code)
}

// ListHistoricalData returns all points, or the points of one issuer when the filter names it
func (s *Service) ListHistoricalData(ctx context.Context, f HistoricalDataFilter) ([]*models.HistoricalDataPoint, error) {
	if f.IssuerCode == "" {
		if !f.From.IsZero() || !f.To.IsZero() {
			return nil, fmt.Errorf("%w: date range requires an issuer code", ErrInvalidRequest)
		}
		return s.store.ListHistoricalData(ctx)
	}
	return s.store.ListHistoricalDataByIssuer(ctx, f.IssuerCode, database.DateRange{From: f.From, To: f.To})
}

// GetHistoricalDataPoint returns the point with the given id, or nil if there is none
func (s *Service) GetHistoricalDataPoint(ctx context.Context, id int64) (*models.HistoricalDataPoint, error) {
	return absentAsNil(s.store.GetHistoricalDataByID(ctx, id))
}

// GetHistoricalValues returns the parsed numeric view of a point, or nil if there is none
func (s *Service) GetHistoricalValues(ctx context.Context, id int64) (*numeric.Values, error) {
	p, err := s.GetHistoricalDataPoint(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	v, err := numeric.ParseValues(p)
	if err != nil {
		return nil, &ParseError{ID: id, Err: err}
	}
	return v, nil
}

// ListSignals returns all signals, or one issuer's signals when the filter names it
func (s *Service) ListSignals(ctx context.Context, f SignalFilter) ([]*models.Signal, error) {
	if f.IssuerCode == "" {
		if f.Timeframe != "" {
			return nil, fmt.Errorf("%w: timeframe filter requires an issuer code", ErrInvalidRequest)
		}
		return s.store.ListSignals(ctx)
	}
	return s.store.ListSignalsByIssuer(ctx, f.IssuerCode, f.Timeframe)
}

// GetSignal returns the signal with the given id, or nil if there is none
func (s *Service) GetSignal(ctx context.Context, id int64) (*models.Signal, error) {
	return absentAsNil(s.store.GetSignalByID(ctx, id))
}

// ParseError reports a stored numeric token that could not be interpreted
type ParseError struct {
	ID  int64
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("historical data %d: %v", e.ID, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func absentAsNil[T any](v *T, err error) (*T, error) {
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
