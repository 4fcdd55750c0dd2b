package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/aurum/internal/database"
)

// FactorRepository persists bullish and bearish factors keyed by (type, title).
type FactorRepository struct {
	db *sql.DB
}

// NewFactorRepository creates a new factor repository.
func NewFactorRepository(db *sql.DB) *FactorRepository {
	return &FactorRepository{db: db}
}

// Upsert writes factors of factorType atomically. Existing rows with the same
// title are updated in place.
func (r *FactorRepository) Upsert(ctx context.Context, factorType string, factors []Factor) error {
	now := time.Now().Unix()
	return database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO market_factors (factor_type, title, subtitle, description, details, impact, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(factor_type, title) DO UPDATE SET
				subtitle = excluded.subtitle,
				description = excluded.description,
				details = excluded.details,
				impact = excluded.impact,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare factor upsert: %w", err)
		}
		defer stmt.Close()

		for _, f := range factors {
			details, err := json.Marshal(f.Details)
			if err != nil {
				return fmt.Errorf("failed to marshal details for %s: %w", f.Title, err)
			}
			if _, err := stmt.ExecContext(ctx, factorType, f.Title, f.Subtitle, f.Description, string(details), normalizeImpact(f.Impact), now, now); err != nil {
				return fmt.Errorf("failed to upsert factor %s: %w", f.Title, err)
			}
		}
		return nil
	})
}

// List returns the factors of factorType, most recently updated first.
func (r *FactorRepository) List(ctx context.Context, factorType string, limit int) ([]Factor, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT title, subtitle, description, details, impact
		FROM market_factors
		WHERE factor_type = ?
		ORDER BY updated_at DESC, id DESC
		LIMIT ?
	`, factorType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query factors: %w", err)
	}
	defer rows.Close()

	factors := []Factor{}
	for rows.Next() {
		var f Factor
		var details string
		if err := rows.Scan(&f.Title, &f.Subtitle, &f.Description, &details, &f.Impact); err != nil {
			return nil, fmt.Errorf("failed to scan factor: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &f.Details); err != nil {
			f.Details = []string{}
		}
		factors = append(factors, f)
	}
	return factors, rows.Err()
}
