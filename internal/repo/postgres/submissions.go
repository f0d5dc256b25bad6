package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/animus-labs/flowlab/internal/repo"
)

const (
	createSubmissionsTableQuery = `CREATE TABLE IF NOT EXISTS flow_submissions (
			submission_id TEXT PRIMARY KEY,
			experiment TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			kind TEXT NOT NULL,
			run_name TEXT NOT NULL,
			dataset TEXT NOT NULL,
			variant TEXT NOT NULL,
			status TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (experiment, fingerprint)
		)`

	insertSubmissionQuery = `INSERT INTO flow_submissions (
			submission_id,
			experiment,
			fingerprint,
			kind,
			run_name,
			dataset,
			variant,
			status,
			payload,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (experiment, fingerprint) DO NOTHING
		RETURNING submission_id, experiment, fingerprint, kind, run_name, dataset, variant, status, payload, created_at`

	selectSubmissionQuery = `SELECT submission_id, experiment, fingerprint, kind, run_name, dataset, variant, status, payload, created_at
		 FROM flow_submissions
		 WHERE experiment = $1 AND fingerprint = $2`

	listSubmissionsQuery = `SELECT submission_id, experiment, fingerprint, kind, run_name, dataset, variant, status, payload, created_at
		 FROM flow_submissions
		 WHERE ($1 = '' OR experiment = $1) AND ($2 = '' OR kind = $2)
		 ORDER BY created_at ASC, submission_id ASC
		 LIMIT $3`
)

const defaultListLimit = 500

type SubmissionStore struct {
	db DB
}

func NewSubmissionStore(db DB) *SubmissionStore {
	if db == nil {
		return nil
	}
	return &SubmissionStore{db: db}
}

// Migrate creates the ledger table when missing.
func (s *SubmissionStore) Migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("submission store not initialized")
	}
	if _, err := s.db.ExecContext(ctx, createSubmissionsTableQuery); err != nil {
		return fmt.Errorf("create submissions table: %w", err)
	}
	return nil
}

func (s *SubmissionStore) Record(ctx context.Context, rec repo.SubmissionRecord) (repo.SubmissionRecord, bool, error) {
	if s == nil || s.db == nil {
		return repo.SubmissionRecord{}, false, fmt.Errorf("submission store not initialized")
	}
	rec.Experiment = strings.TrimSpace(rec.Experiment)
	rec.Fingerprint = strings.TrimSpace(rec.Fingerprint)
	if rec.Experiment == "" {
		return repo.SubmissionRecord{}, false, fmt.Errorf("experiment is required")
	}
	if rec.Fingerprint == "" {
		return repo.SubmissionRecord{}, false, fmt.Errorf("fingerprint is required")
	}
	if strings.TrimSpace(rec.RunName) == "" {
		return repo.SubmissionRecord{}, false, fmt.Errorf("run name is required")
	}
	if len(rec.Payload) == 0 {
		rec.Payload = []byte("{}")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	var out repo.SubmissionRecord
	err := s.db.QueryRowContext(
		ctx,
		insertSubmissionQuery,
		rec.ID,
		rec.Experiment,
		rec.Fingerprint,
		rec.Kind,
		rec.RunName,
		rec.Dataset,
		rec.Variant,
		rec.Status,
		rec.Payload,
		normalizeTime(rec.CreatedAt),
	).Scan(&out.ID, &out.Experiment, &out.Fingerprint, &out.Kind, &out.RunName, &out.Dataset, &out.Variant, &out.Status, &out.Payload, &out.CreatedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return repo.SubmissionRecord{}, false, fmt.Errorf("insert submission: %w", err)
		}
		existing, err := s.GetByFingerprint(ctx, rec.Experiment, rec.Fingerprint)
		if err != nil {
			return repo.SubmissionRecord{}, false, err
		}
		return existing, false, nil
	}
	return out, true, nil
}

func (s *SubmissionStore) GetByFingerprint(ctx context.Context, experiment, fingerprint string) (repo.SubmissionRecord, error) {
	if s == nil || s.db == nil {
		return repo.SubmissionRecord{}, fmt.Errorf("submission store not initialized")
	}
	var rec repo.SubmissionRecord
	row := s.db.QueryRowContext(ctx, selectSubmissionQuery, strings.TrimSpace(experiment), strings.TrimSpace(fingerprint))
	if err := row.Scan(&rec.ID, &rec.Experiment, &rec.Fingerprint, &rec.Kind, &rec.RunName, &rec.Dataset, &rec.Variant, &rec.Status, &rec.Payload, &rec.CreatedAt); err != nil {
		return repo.SubmissionRecord{}, handleNotFound(err)
	}
	return rec, nil
}

func (s *SubmissionStore) List(ctx context.Context, filter repo.SubmissionFilter) ([]repo.SubmissionRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("submission store not initialized")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, listSubmissionsQuery, strings.TrimSpace(filter.Experiment), strings.TrimSpace(filter.Kind), limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	out := make([]repo.SubmissionRecord, 0)
	for rows.Next() {
		var rec repo.SubmissionRecord
		if err := rows.Scan(&rec.ID, &rec.Experiment, &rec.Fingerprint, &rec.Kind, &rec.RunName, &rec.Dataset, &rec.Variant, &rec.Status, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}
