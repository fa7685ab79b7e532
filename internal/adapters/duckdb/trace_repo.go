package duckdb

import (
	"context"
	"fmt"

	"github.com/hashrelay/hashrelay/internal/core/domain"
)

// SaveCallTrace persists one coordinator call record.
func (r *Repository) SaveCallTrace(ctx context.Context, trace domain.CallTrace) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO call_traces (id, method, endpoint, status, http_status, attempts, error, start_time, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trace.ID,
		trace.Method,
		trace.Endpoint,
		string(trace.Status),
		trace.HTTPStatus,
		trace.Attempts,
		trace.Error,
		trace.StartTime,
		trace.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert call trace: %w", err)
	}
	return nil
}

// ListCallTraces returns the most recent call records, newest first.
func (r *Repository) ListCallTraces(ctx context.Context, limit int) ([]domain.CallTrace, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, method, endpoint, status, http_status, attempts, error, start_time, duration_ms
		FROM call_traces
		ORDER BY start_time DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list call traces: %w", err)
	}
	defer rows.Close()

	var out []domain.CallTrace
	for rows.Next() {
		var t domain.CallTrace
		var status string
		if err := rows.Scan(&t.ID, &t.Method, &t.Endpoint, &status, &t.HTTPStatus, &t.Attempts, &t.Error, &t.StartTime, &t.DurationMs); err != nil {
			return nil, err
		}
		t.Status = domain.CallStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}
