package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trogers1052/mse-market-data/internal/models"
)

const historicalDataColumns = `id, issuer_code, date, last_price, max_price, min_price, avg_price,
		percent_change, quantity, turnover_best, total_turnover, created_at`

// DateRange bounds a time-series query; zero ends are open
type DateRange struct {
	From models.Date
	To   models.Date
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// CreateHistoricalDataBatch appends all points in a single transaction.
// Rows sharing (issuer_code, date) are stored as separate rows; nothing is merged.
func (db *DB) CreateHistoricalDataBatch(ctx context.Context, points []*models.HistoricalDataPoint) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO historical_data (
			issuer_code, date, last_price, max_price, min_price, avg_price,
			percent_change, quantity, turnover_best, total_turnover, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`)
	if err != nil {
		return storageErr("prepare statement", err)
	}
	defer stmt.Close()

	now := time.Now()
	ids := make([]int64, len(points))
	for n, p := range points {
		err := stmt.QueryRowContext(ctx,
			p.IssuerCode, p.Date, p.LastPrice, p.MaxPrice, p.MinPrice, p.AvgPrice,
			p.PercentChange, p.Quantity, p.TurnoverBest, p.TotalTurnover, now,
		).Scan(&ids[n])
		if err != nil {
			return storageErr(fmt.Sprintf("insert historical data for %s on %s", p.IssuerCode, p.Date), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit transaction", err)
	}

	for n, p := range points {
		p.ID = ids[n]
		p.CreatedAt = now
	}
	return nil
}

// GetHistoricalDataByID retrieves a single point by its storage id
func (db *DB) GetHistoricalDataByID(ctx context.Context, id int64) (*models.HistoricalDataPoint, error) {
	query := `SELECT ` + historicalDataColumns + ` FROM historical_data WHERE id = $1`

	p, err := scanHistoricalData(db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("historical data %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get historical data", err)
	}
	return p, nil
}

// ListHistoricalData retrieves every stored point in insertion order
func (db *DB) ListHistoricalData(ctx context.Context) ([]*models.HistoricalDataPoint, error) {
	query := `SELECT ` + historicalDataColumns + ` FROM historical_data ORDER BY id`
	return db.queryHistoricalData(ctx, "list historical data", query)
}

// ListHistoricalDataByIssuer retrieves the points whose issuer code matches exactly, ordered by date.
// An issuer without rows yields an empty slice.
func (db *DB) ListHistoricalDataByIssuer(ctx context.Context, issuerCode string, r DateRange) ([]*models.HistoricalDataPoint, error) {
	conditions := []string{"issuer_code = $1"}
	args := []interface{}{issuerCode}
	if !r.From.IsZero() {
		args = append(args, r.From)
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !r.To.IsZero() {
		args = append(args, r.To)
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)))
	}

	query := `SELECT ` + historicalDataColumns + ` FROM historical_data
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY date ASC, id ASC`
	return db.queryHistoricalData(ctx, "list historical data for "+issuerCode, query, args...)
}

// CountHistoricalData returns the number of stored points
func (db *DB) CountHistoricalData(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM historical_data`).Scan(&n); err != nil {
		return 0, storageErr("count historical data", err)
	}
	return n, nil
}

func (db *DB) queryHistoricalData(ctx context.Context, op, query string, args ...interface{}) ([]*models.HistoricalDataPoint, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	points := []*models.HistoricalDataPoint{}
	for rows.Next() {
		p, err := scanHistoricalData(rows)
		if err != nil {
			return nil, storageErr("scan historical data", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return points, nil
}

func scanHistoricalData(row rowScanner) (*models.HistoricalDataPoint, error) {
	var p models.HistoricalDataPoint
	var lastPrice, maxPrice, minPrice, avgPrice, percentChange sql.NullString
	var quantity, turnoverBest, totalTurnover sql.NullString

	err := row.Scan(
		&p.ID, &p.IssuerCode, &p.Date, &lastPrice, &maxPrice, &minPrice, &avgPrice,
		&percentChange, &quantity, &turnoverBest, &totalTurnover, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.LastPrice = lastPrice.String
	p.MaxPrice = maxPrice.String
	p.MinPrice = minPrice.String
	p.AvgPrice = avgPrice.String
	p.PercentChange = percentChange.String
	p.Quantity = quantity.String
	p.TurnoverBest = turnoverBest.String
	p.TotalTurnover = totalTurnover.String
	return &p, nil
}
