package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

const uniqueViolation = "23505"

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *domain.ProcessingJob) error {
	s := job.Snapshot()
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create job tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO processing_jobs (
	id, tenant_id, inbound_email_id, status, started_at, completed_at, error_message, version, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,1,$8)
`,
		s.ID, s.TenantID, s.InboundEmailID, string(s.Status), s.StartedAt, s.CompletedAt, nullString(s.ErrorMessage), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrDuplicateJob, "create job", fmt.Errorf("inbound email %s", s.InboundEmailID))
		}
		return fmt.Errorf("insert job: %w", err)
	}

	if err := upsertDocuments(ctx, tx, s.ID, s.Documents); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create job tx: %w", err)
	}
	job.MarkPersisted(1)
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProcessingJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, inbound_email_id, status, started_at, completed_at, error_message, version
FROM processing_jobs
WHERE id = $1
`, id)

	var s domain.JobSnapshot
	var status string
	var errMessage sql.NullString
	err := row.Scan(&s.ID, &s.TenantID, &s.InboundEmailID, &status, &s.StartedAt, &s.CompletedAt, &errMessage, &s.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("job not found: %s", id))
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	s.Status = domain.JobStatus(status)
	s.ErrorMessage = errMessage.String

	docs, err := r.listDocuments(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Documents = docs
	return domain.RehydrateProcessingJob(s), nil
}

func (r *JobRepository) listDocuments(ctx context.Context, jobID uuid.UUID) ([]domain.DocumentSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, source_attachment_id, original_file_name, blob_storage_url, document_type, classification_confidence,
	status, extracted_fields, validation_errors, processed_at, failure_reason
FROM processed_documents
WHERE job_id = $1
ORDER BY position
`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DocumentSnapshot, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func scanDocument(rows *sql.Rows) (domain.DocumentSnapshot, error) {
	var d domain.DocumentSnapshot
	var docType, status string
	var fieldsRaw, errorsRaw []byte
	var failure sql.NullString
	if err := rows.Scan(
		&d.ID,
		&d.SourceAttachmentID,
		&d.OriginalFileName,
		&d.BlobStorageURL,
		&docType,
		&d.ClassificationConfidence,
		&status,
		&fieldsRaw,
		&errorsRaw,
		&d.ProcessedAt,
		&failure,
	); err != nil {
		return domain.DocumentSnapshot{}, fmt.Errorf("scan document: %w", err)
	}
	if err := json.Unmarshal(fieldsRaw, &d.ExtractedFields); err != nil {
		return domain.DocumentSnapshot{}, fmt.Errorf("unmarshal extracted fields: %w", err)
	}
	if err := json.Unmarshal(errorsRaw, &d.ValidationErrors); err != nil {
		return domain.DocumentSnapshot{}, fmt.Errorf("unmarshal validation errors: %w", err)
	}
	d.DocumentType = domain.DocumentType(docType)
	d.Status = domain.DocumentStatus(status)
	d.FailureReason = failure.String
	return d, nil
}

// Update stores the job and every document in one transaction. The write is
// rejected with ErrConcurrencyConflict when the stored version moved on since
// the job was loaded.
func (r *JobRepository) Update(ctx context.Context, job *domain.ProcessingJob) error {
	s := job.Snapshot()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update job tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
UPDATE processing_jobs
SET status = $2, completed_at = $3, error_message = $4, version = version + 1, updated_at = $5
WHERE id = $1 AND version = $6
`, s.ID, string(s.Status), s.CompletedAt, nullString(s.ErrorMessage), time.Now().UTC(), s.Version)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrConcurrencyConflict, "update job", fmt.Errorf("job %s changed since version %d or does not exist", s.ID, s.Version))
	}

	if err := upsertDocuments(ctx, tx, s.ID, s.Documents); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update job tx: %w", err)
	}
	job.MarkPersisted(s.Version + 1)
	return nil
}

func upsertDocuments(ctx context.Context, tx *sql.Tx, jobID uuid.UUID, docs []domain.DocumentSnapshot) error {
	for i, d := range docs {
		fields := d.ExtractedFields
		if fields == nil {
			fields = []domain.FieldSnapshot{}
		}
		fieldsJSON, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshal extracted fields: %w", err)
		}
		validation := d.ValidationErrors
		if validation == nil {
			validation = []string{}
		}
		errorsJSON, err := json.Marshal(validation)
		if err != nil {
			return fmt.Errorf("marshal validation errors: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
INSERT INTO processed_documents (
	id, job_id, position, source_attachment_id, original_file_name, blob_storage_url, document_type,
	classification_confidence, status, extracted_fields, validation_errors, processed_at, failure_reason
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
	document_type = EXCLUDED.document_type,
	classification_confidence = EXCLUDED.classification_confidence,
	status = EXCLUDED.status,
	extracted_fields = EXCLUDED.extracted_fields,
	validation_errors = EXCLUDED.validation_errors,
	processed_at = EXCLUDED.processed_at,
	failure_reason = EXCLUDED.failure_reason
`,
			d.ID, jobID, i, d.SourceAttachmentID, d.OriginalFileName, d.BlobStorageURL, string(d.DocumentType),
			d.ClassificationConfidence, string(d.Status), fieldsJSON, errorsJSON, d.ProcessedAt, nullString(d.FailureReason),
		)
		if err != nil {
			return fmt.Errorf("upsert document %s: %w", d.ID, err)
		}
	}
	return nil
}

func (r *JobRepository) ListPending(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id
FROM processing_jobs
WHERE status = $1
ORDER BY started_at
LIMIT $2
`, string(domain.JobStatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	defer rows.Close()

	out := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending job id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending jobs: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
