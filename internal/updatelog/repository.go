// Package updatelog records the outcome of every scheduled data update.
package updatelog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Status values written to update_logs.status
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Entry is one row of update_logs.
type Entry struct {
	ID              int64     `json:"id"`
	DataType        string    `json:"data_type"`
	Status          string    `json:"status"`
	RecordsAffected int       `json:"records_affected"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

// Repository provides access to update_logs.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new update log repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Record stores the outcome of a run. A non-nil runErr marks the run failed.
func (r *Repository) Record(ctx context.Context, dataType string, records int, took time.Duration, runErr error) error {
	status, msg := StatusSuccess, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	return r.insert(ctx, Entry{
		DataType:        dataType,
		Status:          status,
		RecordsAffected: records,
		ErrorMessage:    msg,
		DurationSeconds: took.Seconds(),
	})
}

// RecordSkip stores a skipped run with its reason.
func (r *Repository) RecordSkip(ctx context.Context, dataType, reason string) error {
	return r.insert(ctx, Entry{DataType: dataType, Status: StatusSkipped, ErrorMessage: reason})
}

func (r *Repository) insert(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO update_logs (data_type, status, records_affected, error_message, duration_seconds, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.DataType, e.Status, e.RecordsAffected, e.ErrorMessage, e.DurationSeconds, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record update log for %s: %w", e.DataType, err)
	}
	return nil
}

// Recent returns the newest entries, optionally filtered by data type.
func (r *Repository) Recent(ctx context.Context, dataType string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, data_type, status, records_affected, error_message, duration_seconds, created_at
		FROM update_logs`
	args := []interface{}{}
	if dataType != "" {
		query += " WHERE data_type = ?"
		args = append(args, dataType)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query update logs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &e.DataType, &e.Status, &e.RecordsAffected, &e.ErrorMessage, &e.DurationSeconds, &created); err != nil {
			return nil, fmt.Errorf("failed to scan update log: %w", err)
		}
		e.CreatedAt = time.Unix(created, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
