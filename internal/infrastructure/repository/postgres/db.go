package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the job tables. Concurrent api/worker startups are
// serialized with an advisory lock.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS processing_jobs (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL,
	inbound_email_id UUID NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	error_message TEXT,
	version INTEGER NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_processing_jobs_inbound_email ON processing_jobs(inbound_email_id);
CREATE INDEX IF NOT EXISTS idx_processing_jobs_status_started ON processing_jobs(status, started_at);

CREATE TABLE IF NOT EXISTS processed_documents (
	id UUID PRIMARY KEY,
	job_id UUID NOT NULL REFERENCES processing_jobs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	source_attachment_id UUID NOT NULL,
	original_file_name TEXT NOT NULL,
	blob_storage_url TEXT NOT NULL,
	document_type TEXT NOT NULL,
	classification_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	extracted_fields JSONB NOT NULL DEFAULT '[]'::jsonb,
	validation_errors JSONB NOT NULL DEFAULT '[]'::jsonb,
	processed_at TIMESTAMPTZ,
	failure_reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_processed_documents_job ON processed_documents(job_id, position);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
