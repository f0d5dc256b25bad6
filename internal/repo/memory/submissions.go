// Package memory is an in-process submission ledger used by the CLI when no
// database is configured.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/animus-labs/flowlab/internal/repo"
)

type SubmissionStore struct {
	mu      sync.Mutex
	records []repo.SubmissionRecord
	now     func() time.Time
}

func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{now: time.Now}
}

func (s *SubmissionStore) Record(_ context.Context, rec repo.SubmissionRecord) (repo.SubmissionRecord, bool, error) {
	if err := validateRecord(rec); err != nil {
		return repo.SubmissionRecord{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.Experiment == rec.Experiment && existing.Fingerprint == rec.Fingerprint {
			return existing, false, nil
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	s.records = append(s.records, rec)
	return rec, true, nil
}

func (s *SubmissionStore) GetByFingerprint(_ context.Context, experiment, fingerprint string) (repo.SubmissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.Experiment == experiment && existing.Fingerprint == fingerprint {
			return existing, nil
		}
	}
	return repo.SubmissionRecord{}, repo.ErrNotFound
}

func (s *SubmissionStore) List(_ context.Context, filter repo.SubmissionFilter) ([]repo.SubmissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repo.SubmissionRecord, 0, len(s.records))
	for _, rec := range s.records {
		if filter.Experiment != "" && rec.Experiment != filter.Experiment {
			continue
		}
		if filter.Kind != "" && rec.Kind != filter.Kind {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func validateRecord(rec repo.SubmissionRecord) error {
	if strings.TrimSpace(rec.Experiment) == "" {
		return fmt.Errorf("experiment is required")
	}
	if strings.TrimSpace(rec.Fingerprint) == "" {
		return fmt.Errorf("fingerprint is required")
	}
	if strings.TrimSpace(rec.RunName) == "" {
		return fmt.Errorf("run name is required")
	}
	return nil
}
