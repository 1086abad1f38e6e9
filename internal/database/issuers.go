package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/mse-market-data/internal/models"
)

const upsertIssuerQuery = `
	INSERT INTO issuers (code, name, created_at, updated_at)
	VALUES ($1, $2, $3, $3)
	ON CONFLICT (code) DO UPDATE SET
		name = EXCLUDED.name,
		updated_at = EXCLUDED.updated_at
`

// UpsertIssuer creates the issuer if its code is new, otherwise replaces its name.
// It reports whether a new row was created.
func (db *DB) UpsertIssuer(ctx context.Context, i *models.Issuer) (bool, error) {
	query := upsertIssuerQuery + `
	RETURNING created_at, updated_at, (xmax = 0) AS inserted
	`
	var created bool
	err := db.conn.QueryRowContext(ctx, query, i.Code, i.Name, time.Now()).Scan(
		&i.CreatedAt, &i.UpdatedAt, &created,
	)
	if err != nil {
		return false, storageErr("upsert issuer "+i.Code, err)
	}
	return created, nil
}

// CreateIssuerBatch upserts all issuers in a single transaction; either every row is written or none
func (db *DB) CreateIssuerBatch(ctx context.Context, issuers []*models.Issuer) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertIssuerQuery)
	if err != nil {
		return storageErr("prepare statement", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, i := range issuers {
		if _, err := stmt.ExecContext(ctx, i.Code, i.Name, now); err != nil {
			return storageErr("insert issuer "+i.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit transaction", err)
	}
	return nil
}

// GetIssuer retrieves an issuer by code
func (db *DB) GetIssuer(ctx context.Context, code string) (*models.Issuer, error) {
	query := `
		SELECT code, name, created_at, updated_at
		FROM issuers
		WHERE code = $1
	`
	var i models.Issuer
	err := db.conn.QueryRowContext(ctx, query, code).Scan(&i.Code, &i.Name, &i.CreatedAt, &i.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("issuer %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get issuer", err)
	}
	return &i, nil
}

// ListIssuers retrieves all issuers ordered by code
func (db *DB) ListIssuers(ctx context.Context) ([]*models.Issuer, error) {
	query := `
		SELECT code, name, created_at, updated_at
		FROM issuers
		ORDER BY code
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr("list issuers", err)
	}
	defer rows.Close()

	issuers := []*models.Issuer{}
	for rows.Next() {
		var i models.Issuer
		if err := rows.Scan(&i.Code, &i.Name, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, storageErr("scan issuer", err)
		}
		issuers = append(issuers, &i)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list issuers", err)
	}
	return issuers, nil
}

// DeleteIssuer removes an issuer. Historical data and signals referencing the code are left untouched.
func (db *DB) DeleteIssuer(ctx context.Context, code string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM issuers WHERE code = $1`, code)
	if err != nil {
		return storageErr("delete issuer", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("issuer %s: %w", code, ErrNotFound)
	}
	return nil
}
