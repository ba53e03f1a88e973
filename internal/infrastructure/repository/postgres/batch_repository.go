package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

const schemaLockID int64 = 2026101901

type BatchRepository struct {
	db *sql.DB
}

func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

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

func (r *BatchRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS classification_batches (
	id TEXT PRIMARY KEY,
	job_id TEXT,
	directory TEXT NOT NULL,
	status TEXT NOT NULL,
	task_count INTEGER NOT NULL DEFAULT 0,
	results JSONB NOT NULL DEFAULT '[]'::jsonb,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_classification_batches_status ON classification_batches(status);
CREATE INDEX IF NOT EXISTS idx_classification_batches_job_id ON classification_batches(job_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *BatchRepository) Create(ctx context.Context, record *domain.BatchRecord) error {
	resultsJSON, err := marshalResults(record.Results)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO classification_batches (
	id, job_id, directory, status, task_count, results, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		record.ID, record.JobID, record.Directory, string(record.Status), record.TaskCount, resultsJSON,
		record.Error, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (r *BatchRepository) GetByID(ctx context.Context, id string) (*domain.BatchRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, job_id, directory, status, task_count, results, error_message, created_at, updated_at
FROM classification_batches
WHERE id = $1
`, id)

	var record domain.BatchRecord
	var jobID, errMessage sql.NullString
	var resultsRaw []byte
	var status string

	err := row.Scan(
		&record.ID, &jobID, &record.Directory, &status, &record.TaskCount,
		&resultsRaw, &errMessage, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get batch", fmt.Errorf("batch %s", id))
		}
		return nil, fmt.Errorf("scan batch: %w", err)
	}

	if len(resultsRaw) > 0 {
		if err := json.Unmarshal(resultsRaw, &record.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}
	record.JobID = jobID.String
	record.Error = errMessage.String
	record.Status = domain.BatchStatus(status)
	return &record, nil
}

func (r *BatchRepository) UpdateStatus(ctx context.Context, id string, status domain.BatchStatus, jobID string, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE classification_batches
SET status = $2, job_id = COALESCE(NULLIF($3, ''), job_id), error_message = $4, updated_at = $5
WHERE id = $1
`, id, string(status), jobID, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	return requireAffected(res, id)
}

func (r *BatchRepository) SaveResults(ctx context.Context, id string, taskCount int, results []domain.ClassificationResult) error {
	resultsJSON, err := marshalResults(results)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE classification_batches
SET task_count = $2, results = $3, updated_at = $4
WHERE id = $1
`, id, taskCount, resultsJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save batch results: %w", err)
	}
	return requireAffected(res, id)
}

func marshalResults(results []domain.ClassificationResult) ([]byte, error) {
	if results == nil {
		results = []domain.ClassificationResult{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("marshal results: %w", err)
	}
	return raw, nil
}

func requireAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "update batch", fmt.Errorf("batch %s", id))
	}
	return nil
}
