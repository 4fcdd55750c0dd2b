package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is one stored production result.
type Snapshot struct {
	ID        int64           `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
}

// SnapshotRepository keeps the history of produced artifacts.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// SaveSnapshot implements artifact.SnapshotStore.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, kind string, payload json.RawMessage, source string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO analysis_snapshots (kind, payload, source, created_at) VALUES (?, ?, ?, ?)`,
		kind, string(payload), source, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save %s snapshot: %w", kind, err)
	}
	return nil
}

// History returns the latest snapshots of kind, newest first.
func (r *SnapshotRepository) History(ctx context.Context, kind string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, payload, source, created_at
		FROM analysis_snapshots
		WHERE kind = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	out := []Snapshot{}
	for rows.Next() {
		var s Snapshot
		var payload string
		var created int64
		if err := rows.Scan(&s.ID, &s.Kind, &payload, &s.Source, &created); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.Payload = json.RawMessage(payload)
		s.CreatedAt = time.Unix(created, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Prune keeps the newest keep snapshots per kind and deletes the rest.
func (r *SnapshotRepository) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM analysis_snapshots
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY kind ORDER BY created_at DESC, id DESC) AS rn
				FROM analysis_snapshots
			) WHERE rn > ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
