package duckdb

import (
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/hashrelay/hashrelay/internal/core/ports"
)

// Repository is the DuckDB-backed telemetry store. It holds coordinator call
// traces only; job state never touches it.
type Repository struct {
	db *sql.DB
}

var _ ports.TraceStore = (*Repository)(nil)

func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb at %s: %w", path, err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS call_traces (
			id          VARCHAR PRIMARY KEY,
			method      VARCHAR NOT NULL,
			endpoint    VARCHAR NOT NULL,
			status      VARCHAR NOT NULL,
			http_status INTEGER,
			attempts    INTEGER NOT NULL,
			error       VARCHAR,
			start_time  TIMESTAMP NOT NULL,
			duration_ms BIGINT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create call_traces table: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
