package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/aurum/internal/database"
)

// InstitutionRepository persists institutional views keyed by institution name.
type InstitutionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewInstitutionRepository creates a new institution repository.
func NewInstitutionRepository(db *sql.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db, now: time.Now}
}

// Upsert writes views atomically, one row per institution.
func (r *InstitutionRepository) Upsert(ctx context.Context, views []Institution) error {
	now := r.now().Unix()
	return database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO institution_views (institution_name, logo, rating, target_price, timeframe, reasoning, key_points, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(institution_name) DO UPDATE SET
				logo = excluded.logo,
				rating = excluded.rating,
				target_price = excluded.target_price,
				timeframe = excluded.timeframe,
				reasoning = excluded.reasoning,
				key_points = excluded.key_points,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare institution upsert: %w", err)
		}
		defer stmt.Close()

		for _, v := range views {
			points, err := json.Marshal(v.KeyPoints)
			if err != nil {
				return fmt.Errorf("failed to marshal key points for %s: %w", v.Name, err)
			}
			if _, err := stmt.ExecContext(ctx, v.Name, v.Logo, v.Rating, v.TargetPrice, v.Timeframe, v.Reasoning, string(points), now, now); err != nil {
				return fmt.Errorf("failed to upsert institution %s: %w", v.Name, err)
			}
		}
		return nil
	})
}

// UpdatedSince returns the views updated at or after since.
func (r *InstitutionRepository) UpdatedSince(ctx context.Context, since time.Time) ([]Institution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT institution_name, logo, rating, target_price, timeframe, reasoning, key_points
		FROM institution_views
		WHERE updated_at >= ?
		ORDER BY updated_at DESC, id ASC
	`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query institution views: %w", err)
	}
	defer rows.Close()

	views := []Institution{}
	for rows.Next() {
		var v Institution
		var points string
		if err := rows.Scan(&v.Name, &v.Logo, &v.Rating, &v.TargetPrice, &v.Timeframe, &v.Reasoning, &points); err != nil {
			return nil, fmt.Errorf("failed to scan institution view: %w", err)
		}
		if err := json.Unmarshal([]byte(points), &v.KeyPoints); err != nil {
			v.KeyPoints = []string{}
		}
		views = append(views, v)
	}
	return views, rows.Err()
}
