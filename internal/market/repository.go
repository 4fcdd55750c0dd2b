package market

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/aurum/internal/database"
)

// tables maps each instrument to its bar table.
var tables = map[Instrument]string{
	Gold:        "gold_prices",
	DollarIndex: "dollar_index",
}

// Repository persists daily bars. One row per (instrument, date).
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new price bar repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func tableFor(inst Instrument) (string, error) {
	table, ok := tables[inst]
	if !ok {
		return "", fmt.Errorf("unknown instrument: %s", inst)
	}
	return table, nil
}

// Upsert writes the given bars in one transaction, keyed by date.
func (r *Repository) Upsert(ctx context.Context, inst Instrument, bars ...PriceBar) error {
	table, err := tableFor(inst)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (date, open, high, low, close, volume, change_percent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			change_percent = excluded.change_percent,
			updated_at = excluded.updated_at`, table)

	now := time.Now().Unix()
	return database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert for %s: %w", table, err)
		}
		defer stmt.Close()

		for _, b := range bars {
			if _, err := stmt.ExecContext(ctx, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume, b.ChangePercent, now, now); err != nil {
				return fmt.Errorf("failed to upsert %s bar %s: %w", inst, b.Date, err)
			}
		}
		return nil
	})
}

// Series returns every bar dated on or after since ("" for all), oldest first.
func (r *Repository) Series(ctx context.Context, inst Instrument, since string) (Series, error) {
	table, err := tableFor(inst)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT date, open, high, low, close, volume, change_percent FROM %s WHERE date >= ? ORDER BY date ASC`, table,
	), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	series := Series{}
	for rows.Next() {
		var b PriceBar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.ChangePercent); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		series = append(series, b)
	}
	return series, rows.Err()
}

// Recent returns the bars of the last days calendar days up to asOf.
func (r *Repository) Recent(ctx context.Context, inst Instrument, days int, asOf time.Time) (Series, error) {
	return r.Series(ctx, inst, DateOf(asOf.AddDate(0, 0, -days)))
}

// Latest returns the most recent bar.
func (r *Repository) Latest(ctx context.Context, inst Instrument) (PriceBar, bool, error) {
	table, err := tableFor(inst)
	if err != nil {
		return PriceBar{}, false, err
	}

	var b PriceBar
	err = r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT date, open, high, low, close, volume, change_percent FROM %s ORDER BY date DESC LIMIT 1`, table,
	)).Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.ChangePercent)
	if err == sql.ErrNoRows {
		return PriceBar{}, false, nil
	}
	if err != nil {
		return PriceBar{}, false, fmt.Errorf("failed to get latest %s bar: %w", inst, err)
	}
	return b, true, nil
}
