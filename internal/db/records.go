package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/j-veylop/claude-usage-tui/internal/logger"
	"github.com/j-veylop/claude-usage-tui/internal/models"
)

// timeLayout is fixed width so that text comparison orders chronologically.
const timeLayout = "2006-01-02 15:04:05.000000000"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// DailyCost is the total cost of one UTC day.
type DailyCost struct {
	Day      time.Time
	Cost     float64
	Requests int
}

// ModelCost is the total cost of one model over a period.
type ModelCost struct {
	Model    string
	Cost     float64
	Requests int
}

// InsertUsageRecords upserts recs in one transaction. An existing row is
// only overwritten by a record with a later timestamp.
func (db *DB) InsertUsageRecords(ctx context.Context, recs []models.UsageRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO usage_records (
			dedup_key, timestamp, session_id, request_id, model,
			input_tokens, output_tokens, cache_write_tokens, cache_read_tokens,
			cost, source_path, source_identity, source_offset
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedup_key) DO UPDATE SET
			timestamp = excluded.timestamp,
			session_id = excluded.session_id,
			model = excluded.model,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			cache_write_tokens = excluded.cache_write_tokens,
			cache_read_tokens = excluded.cache_read_tokens,
			cost = excluded.cost,
			source_path = excluded.source_path,
			source_identity = excluded.source_identity,
			source_offset = excluded.source_offset
		WHERE excluded.timestamp > usage_records.timestamp
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	written := 0
	for i := range recs {
		rec := &recs[i]
		result, err := stmt.ExecContext(ctx,
			rec.DedupKey(),
			formatTime(rec.Timestamp),
			nullString(rec.SessionID),
			nullString(rec.RequestID),
			rec.Model,
			rec.Usage.Input,
			rec.Usage.Output,
			rec.Usage.CacheWrite,
			rec.Usage.CacheRead,
			rec.Cost,
			rec.Source.Path,
			nullString(rec.Source.Identity),
			rec.Source.Offset,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert usage record: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil {
			written += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit usage records: %w", err)
	}
	return written, nil
}

// GetUsageRecordsSince returns records at or after since, oldest first.
func (db *DB) GetUsageRecordsSince(ctx context.Context, since time.Time) ([]models.UsageRecord, error) {
	query := `
		SELECT timestamp, session_id, request_id, model,
			   input_tokens, output_tokens, cache_write_tokens, cache_read_tokens,
			   cost, source_path, source_identity, source_offset
		FROM usage_records
		WHERE timestamp >= ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := db.QueryContext(ctx, query, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", "error", err)
		}
	}()

	var recs []models.UsageRecord
	for rows.Next() {
		var rec models.UsageRecord
		var ts string
		var sessID, reqID, path, identity sql.NullString

		err := rows.Scan(
			&ts,
			&sessID,
			&reqID,
			&rec.Model,
			&rec.Usage.Input,
			&rec.Usage.Output,
			&rec.Usage.CacheWrite,
			&rec.Usage.CacheRead,
			&rec.Cost,
			&path,
			&identity,
			&rec.Source.Offset,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}

		rec.Timestamp, err = time.Parse(timeLayout, ts)
		if err != nil {
			logger.Warn("Skipping usage record with bad timestamp", "timestamp", ts)
			continue
		}
		rec.SessionID = sessID.String
		rec.RequestID = reqID.String
		rec.Source.Path = path.String
		rec.Source.Identity = identity.String
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// GetDailyCosts returns per-day totals for the last days days, oldest first.
func (db *DB) GetDailyCosts(ctx context.Context, now time.Time, days int) ([]DailyCost, error) {
	since := now.UTC().Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))
	query := `
		SELECT substr(timestamp, 1, 10) AS day,
			   COALESCE(SUM(cost), 0),
			   COUNT(*)
		FROM usage_records
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day ASC
	`

	rows, err := db.QueryContext(ctx, query, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily costs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []DailyCost
	for rows.Next() {
		var day string
		var dc DailyCost
		if err := rows.Scan(&day, &dc.Cost, &dc.Requests); err != nil {
			return nil, fmt.Errorf("failed to scan daily cost: %w", err)
		}
		dc.Day, err = time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// GetModelCostsSince returns per-model totals of records at or after since,
// most expensive first.
func (db *DB) GetModelCostsSince(ctx context.Context, since time.Time) ([]ModelCost, error) {
	query := `
		SELECT model, COALESCE(SUM(cost), 0), COUNT(*)
		FROM usage_records
		WHERE timestamp >= ?
		GROUP BY model
		ORDER BY 2 DESC, model ASC
	`

	rows, err := db.QueryContext(ctx, query, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query model costs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ModelCost
	for rows.Next() {
		var mc ModelCost
		if err := rows.Scan(&mc.Model, &mc.Cost, &mc.Requests); err != nil {
			return nil, fmt.Errorf("failed to scan model cost: %w", err)
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

// PruneUsageRecords deletes records older than before.
func (db *DB) PruneUsageRecords(ctx context.Context, before time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, "DELETE FROM usage_records WHERE timestamp < ?", formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage records: %w", err)
	}
	return result.RowsAffected()
}

// CountUsageRecords returns the number of stored records.
func (db *DB) CountUsageRecords(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM usage_records").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count usage records: %w", err)
	}
	return n, nil
}

// ClearUsageRecords deletes every record.
func (db *DB) ClearUsageRecords(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM usage_records"); err != nil {
		return fmt.Errorf("failed to clear usage records: %w", err)
	}
	return nil
}

// nullString converts an empty string to a NULL database value.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
