package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/mse-market-data/internal/models"
)

const signalColumns = `id, issuer_code, timeframe, signal, date, created_at`

// CreateSignalBatch appends all signals in a single transaction
func (db *DB) CreateSignalBatch(ctx context.Context, signals []*models.Signal) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO signals (issuer_code, timeframe, signal, date, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`)
	if err != nil {
		return storageErr("prepare statement", err)
	}
	defer stmt.Close()

	now := time.Now()
	ids := make([]int64, len(signals))
	for n, s := range signals {
		err := stmt.QueryRowContext(ctx, s.IssuerCode, s.Timeframe, s.Signal, s.Date, now).Scan(&ids[n])
		if err != nil {
			return storageErr(fmt.Sprintf("insert %s signal for %s", s.Timeframe, s.IssuerCode), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit transaction", err)
	}

	for n, s := range signals {
		s.ID = ids[n]
		s.CreatedAt = now
	}
	return nil
}

// GetSignalByID retrieves a single signal by id
func (db *DB) GetSignalByID(ctx context.Context, id int64) (*models.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE id = $1`

	var s models.Signal
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.IssuerCode, &s.Timeframe, &s.Signal, &s.Date, &s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("signal %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get signal", err)
	}
	return &s, nil
}

// ListSignals retrieves every stored signal in insertion order
func (db *DB) ListSignals(ctx context.Context) ([]*models.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals ORDER BY id`
	return db.querySignals(ctx, "list signals", query)
}

// ListSignalsByIssuer retrieves the signals for an issuer, optionally restricted to one timeframe
func (db *DB) ListSignalsByIssuer(ctx context.Context, issuerCode, timeframe string) ([]*models.Signal, error) {
	if timeframe == "" {
		query := `SELECT ` + signalColumns + ` FROM signals WHERE issuer_code = $1 ORDER BY date ASC, id ASC`
		return db.querySignals(ctx, "list signals for "+issuerCode, query, issuerCode)
	}
	query := `SELECT ` + signalColumns + ` FROM signals
		WHERE issuer_code = $1 AND timeframe = $2
		ORDER BY date ASC, id ASC`
	return db.querySignals(ctx, "list signals for "+issuerCode, query, issuerCode, timeframe)
}

// CountSignals returns the number of stored signals
func (db *DB) CountSignals(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM signals`).Scan(&n); err != nil {
		return 0, storageErr("count signals", err)
	}
	return n, nil
}

func (db *DB) querySignals(ctx context.Context, op, query string, args ...interface{}) ([]*models.Signal, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	signals := []*models.Signal{}
	for rows.Next() {
		var s models.Signal
		if err := rows.Scan(&s.ID, &s.IssuerCode, &s.Timeframe, &s.Signal, &s.Date, &s.CreatedAt); err != nil {
			return nil, storageErr("scan signal", err)
		}
		signals = append(signals, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return signals, nil
}
