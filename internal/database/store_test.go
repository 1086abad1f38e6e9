package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/mse-market-data/internal/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return &DB{conn: sqlDB}, mock
}

var historicalDataCols = []string{
	"id", "issuer_code", "date", "last_price", "max_price", "min_price", "avg_price",
	"percent_change", "quantity", "turnover_best", "total_turnover", "created_at",
}

func TestUpsertIssuer_ReportsCreated(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	for _, tt := range []struct {
		name     string
		inserted bool
	}{
		{"new code", true},
		{"existing code", false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectQuery("INSERT INTO issuers").
				WithArgs("ALK", "Alkaloid Skopje", sqlmock.AnyArg()).
				WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at", "inserted"}).
					AddRow(now, now, tt.inserted))

			issuer := &models.Issuer{Code: "ALK", Name: "Alkaloid Skopje"}
			created, err := db.UpsertIssuer(ctx, issuer)
			require.NoError(t, err)
			assert.Equal(t, tt.inserted, created)
			assert.False(t, issuer.UpdatedAt.IsZero())
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetIssuer_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT code, name").
		WithArgs("XXX").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "created_at", "updated_at"}))

	issuer, err := db.GetIssuer(context.Background(), "XXX")
	assert.Nil(t, issuer)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListIssuers_SurfacesRowError(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()
	mock.ExpectQuery("SELECT code, name").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "created_at", "updated_at"}).
			AddRow("ALK", "Alkaloid", now, now).
			AddRow("KMB", "Komercijalna", now, now).
			RowError(1, errors.New("connection reset")))

	issuers, err := db.ListIssuers(context.Background())
	assert.Nil(t, issuers)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "list issuers", storageErr.Op)
}

func TestListIssuers_EmptyIsNotNil(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT code, name").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "created_at", "updated_at"}))

	issuers, err := db.ListIssuers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, issuers)
	assert.Empty(t, issuers)
}

func TestDeleteIssuer(t *testing.T) {
	t.Run("missing code", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("DELETE FROM issuers").WithArgs("XXX").WillReturnResult(sqlmock.NewResult(0, 0))

		err := db.DeleteIssuer(context.Background(), "XXX")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("only touches issuers", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("DELETE FROM issuers").WithArgs("ALK").WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, db.DeleteIssuer(context.Background(), "ALK"))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreateHistoricalDataBatch_Success(t *testing.T) {
	db, mock := newMockDB(t)
	date := models.NewDate(2024, time.January, 2)
	points := []*models.HistoricalDataPoint{
		{IssuerCode: "ALK", Date: date, LastPrice: "1200,00"},
		{IssuerCode: "ALK", Date: date, LastPrice: "1200,00"},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO historical_data")
	prep.ExpectQuery().
		WithArgs("ALK", "2024-01-02", "1200,00", "", "", "", "", "", "", "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	prep.ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()

	err := db.CreateHistoricalDataBatch(context.Background(), points)
	require.NoError(t, err)

	assert.Equal(t, int64(1), points[0].ID)
	assert.Equal(t, int64(2), points[1].ID)
	assert.False(t, points[1].CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateHistoricalDataBatch_RollsBackOnRowFailure(t *testing.T) {
	db, mock := newMockDB(t)
	points := []*models.HistoricalDataPoint{
		{IssuerCode: "ALK", Date: models.NewDate(2024, time.January, 2)},
		{IssuerCode: "ALK-TOO-LONG-CODE", Date: models.NewDate(2024, time.January, 3)},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO historical_data")
	prep.ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	prep.ExpectQuery().WillReturnError(&pq.Error{Code: "22001", Message: "value too long"})
	mock.ExpectRollback()

	err := db.CreateHistoricalDataBatch(context.Background(), points)
	require.Error(t, err)

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.True(t, storageErr.RowRejected())
	assert.Contains(t, err.Error(), "ALK-TOO-LONG-CODE")
	assert.Zero(t, points[0].ID, "ids are only assigned after commit")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSignalBatch_ReturnsErrorIfBeginFails(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin().WillReturnError(errors.New("begin failed"))

	err := db.CreateSignalBatch(context.Background(), []*models.Signal{{IssuerCode: "ALK"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.False(t, storageErr.RowRejected())
}

func TestCreateIssuerBatch_RollsBackOnCommitFailure(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO issuers")
	prep.ExpectExec().WithArgs("ALK", "Alkaloid", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("commit failed"))

	err := db.CreateIssuerBatch(context.Background(), []*models.Issuer{{Code: "ALK", Name: "Alkaloid"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
}

func TestListHistoricalDataByIssuer_DateRange(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()
	day := time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`issuer_code = \$1 AND date >= \$2 AND date <= \$3`).
		WithArgs("ALK", "2024-01-02", "2024-01-31").
		WillReturnRows(sqlmock.NewRows(historicalDataCols).
			AddRow(5, "ALK", day, "1.200,00", nil, nil, nil, "0,42", "350", nil, "420.000", now))

	points, err := db.ListHistoricalDataByIssuer(context.Background(), "ALK", DateRange{
		From: models.NewDate(2024, time.January, 2),
		To:   models.NewDate(2024, time.January, 31),
	})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, int64(5), points[0].ID)
	assert.Equal(t, "2024-01-03", points[0].Date.String())
	assert.Equal(t, "1.200,00", points[0].LastPrice)
	assert.Equal(t, "", points[0].MaxPrice)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListHistoricalDataByIssuer_OpenRange(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`WHERE issuer_code = \$1\s+ORDER BY`).
		WithArgs("ALK").
		WillReturnRows(sqlmock.NewRows(historicalDataCols))

	points, err := db.ListHistoricalDataByIssuer(context.Background(), "ALK", DateRange{})
	require.NoError(t, err)
	assert.Empty(t, points)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSignalByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM signals WHERE id").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "issuer_code", "timeframe", "signal", "date", "created_at"}))

	s, err := db.GetSignalByID(context.Background(), 99)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSignalsByIssuer_Timeframe(t *testing.T) {
	db, mock := newMockDB(t)
	day := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`issuer_code = \$1 AND timeframe = \$2`).
		WithArgs("ALK", models.TimeframeDaily).
		WillReturnRows(sqlmock.NewRows([]string{"id", "issuer_code", "timeframe", "signal", "date", "created_at"}).
			AddRow(1, "ALK", models.TimeframeDaily, models.SignalBuy, day, time.Now()))

	signals, err := db.ListSignalsByIssuer(context.Background(), "ALK", models.TimeframeDaily)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, models.SignalBuy, signals[0].Signal)
}

func TestPing_WrapsError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()
	db := NewFromConn(sqlDB)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	err = db.Ping(context.Background())
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "ping", storageErr.Op)
}
