// Package repo defines the submission ledger.
package repo

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Submission kinds.
const (
	KindStandard   = "standard"
	KindEvaluation = "evaluation"
)

// SubmissionRecord is one submitted run. Fingerprint identifies the run
// within an experiment build, so re-submitting the same plan is a no-op.
type SubmissionRecord struct {
	ID          string
	Experiment  string
	Fingerprint string
	Kind        string
	RunName     string
	Dataset     string
	Variant     string
	Status      string
	Payload     []byte
	CreatedAt   time.Time
}

type SubmissionFilter struct {
	Experiment string
	Kind       string
	Limit      int
}

// SubmissionRepository stores submissions idempotently by fingerprint.
type SubmissionRepository interface {
	// Record inserts rec unless a record with the same experiment and
	// fingerprint exists, in which case the stored record is returned with
	// created=false.
	Record(ctx context.Context, rec SubmissionRecord) (SubmissionRecord, bool, error)
	GetByFingerprint(ctx context.Context, experiment, fingerprint string) (SubmissionRecord, error)
	List(ctx context.Context, filter SubmissionFilter) ([]SubmissionRecord, error)
}
