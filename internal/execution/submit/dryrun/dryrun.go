// Package dryrun records submissions in the ledger without running user
// code. Run outcomes are derived deterministically from the fingerprint.
package dryrun

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/animus-labs/flowlab/internal/domain"
	"github.com/animus-labs/flowlab/internal/execution/submit"
	"github.com/animus-labs/flowlab/internal/repo"
)

type outcomeDecider func(fingerprint string) float64

type Submitter struct {
	repo        repo.SubmissionRepository
	now         func() time.Time
	decide      outcomeDecider
	failureRate float64

	mu          sync.Mutex
	connections map[string]string
}

type Option func(*Submitter)

// WithFailureRate makes roughly rate of the submissions fail.
func WithFailureRate(rate float64) Option {
	return func(s *Submitter) {
		s.failureRate = math.Min(math.Max(rate, 0), 1)
	}
}

func New(repo repo.SubmissionRepository, opts ...Option) *Submitter {
	s := &Submitter{
		repo:        repo,
		now:         time.Now,
		decide:      deterministicScore,
		connections: map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Submitter) Submit(ctx context.Context, sub submit.Submission) (submit.Handle, error) {
	if s == nil || s.repo == nil {
		return submit.Handle{}, fmt.Errorf("submission repository is required")
	}
	if err := sub.Validate(); err != nil {
		return submit.Handle{}, err
	}

	score := s.decide(sub.Fingerprint)
	status := submit.StatusCompleted
	if score < s.failureRate {
		status = submit.StatusFailed
	}

	payload, err := json.Marshal(payloadFromSubmission(sub, score))
	if err != nil {
		return submit.Handle{}, fmt.Errorf("encode submission: %w", err)
	}

	kind := repo.KindStandard
	if sub.IsEvaluation() {
		kind = repo.KindEvaluation
	}
	rec, created, err := s.repo.Record(ctx, repo.SubmissionRecord{
		Experiment:  sub.Experiment,
		Fingerprint: sub.Fingerprint,
		Kind:        kind,
		RunName:     sub.Name,
		Dataset:     sub.Dataset,
		Variant:     sub.Variant,
		Status:      status,
		Payload:     payload,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return submit.Handle{}, err
	}
	return submit.Handle{Name: rec.RunName, Status: rec.Status, Existing: !created}, nil
}

// EnsureConnection remembers the connection type by name.
func (s *Submitter) EnsureConnection(_ context.Context, conn domain.Connection) error {
	if strings.TrimSpace(conn.Name) == "" {
		return fmt.Errorf("connection name is required")
	}
	if strings.TrimSpace(conn.Type) == "" {
		return fmt.Errorf("connection %s type is required", conn.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[conn.Name] = conn.Type
	return nil
}

// Connections lists the connections ensured so far.
func (s *Submitter) Connections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.connections))
	for name := range s.connections {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type submissionPayload struct {
	DryRun        bool              `json:"dry_run"`
	Score         float64           `json:"score"`
	FlowPath      string            `json:"flow_path"`
	DataReference string            `json:"data_reference"`
	Variant       string            `json:"variant,omitempty"`
	ColumnMapping map[string]string `json:"column_mapping"`
	Tags          map[string]string `json:"tags,omitempty"`
	Runtime       string            `json:"runtime,omitempty"`
	Resources     map[string]string `json:"resources,omitempty"`
	Run           string            `json:"run,omitempty"`
}

// Environment variables and init parameters may carry secrets and are
// left out of the ledger.
func payloadFromSubmission(sub submit.Submission, score float64) submissionPayload {
	mapping := sub.ColumnMapping
	if mapping == nil {
		mapping = map[string]string{}
	}
	return submissionPayload{
		DryRun:        true,
		Score:         score,
		FlowPath:      sub.FlowPath,
		DataReference: sub.DataReference,
		Variant:       sub.Variant,
		ColumnMapping: mapping,
		Tags:          sub.Tags,
		Runtime:       sub.Runtime,
		Resources:     sub.Resources,
		Run:           sub.Run,
	}
}

func deterministicScore(fingerprint string) float64 {
	sum := sha256.Sum256([]byte(fingerprint))
	value := binary.BigEndian.Uint64(sum[:8])
	return float64(value) / float64(math.MaxUint64)
}
