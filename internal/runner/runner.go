// Package runner submits the planned runs of an experiment and evaluates
// completed runs with the experiment's evaluators.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/animus-labs/flowlab/internal/datasets"
	"github.com/animus-labs/flowlab/internal/domain"
	"github.com/animus-labs/flowlab/internal/execution/plan"
	"github.com/animus-labs/flowlab/internal/execution/submit"
	"github.com/animus-labs/flowlab/internal/experiment"
	"github.com/animus-labs/flowlab/internal/platform/auditlog"
	"github.com/animus-labs/flowlab/internal/platform/envsubst"
	"github.com/animus-labs/flowlab/internal/platform/logging"
	"github.com/animus-labs/flowlab/internal/repo"
)

// DefaultInstanceType is requested when the experiment names no runtime.
const DefaultInstanceType = "Standard_E4ds_v4"

// EnvFile holds the run environment variables, relative to the base path.
var EnvFile = filepath.Join("environment", "env.yaml")

// Result describes one run handed to the submitter, or found in the ledger
// from an earlier submission.
type Result struct {
	Name        string
	Kind        string
	Dataset     string
	Variant     string
	Status      string
	Fingerprint string
	Existing    bool
}

type Runner struct {
	exp         *experiment.Experiment
	submitter   submit.Submitter
	resolver    *datasets.Resolver
	ledger      repo.SubmissionRepository
	logger      *slog.Logger
	metrics     *Metrics
	audit       auditlog.Sink
	actor       string
	buildID     string
	parallelism int
	lookup      envsubst.LookupFunc
	newID       func() string
	now         func() time.Time
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBuildID tags every run with build_id and makes the build part of run
// identity.
func WithBuildID(id string) Option {
	return func(r *Runner) {
		r.buildID = strings.TrimSpace(id)
	}
}

// WithParallelism bounds how many datasets are submitted concurrently.
func WithParallelism(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithAudit records every new submission in sink on behalf of actor.
func WithAudit(sink auditlog.Sink, actor string) Option {
	return func(r *Runner) {
		r.audit = sink
		r.actor = strings.TrimSpace(actor)
	}
}

// WithLookup replaces the process environment as the source of
// placeholder values.
func WithLookup(lookup envsubst.LookupFunc) Option {
	return func(r *Runner) {
		if lookup != nil {
			r.lookup = lookup
		}
	}
}

func New(exp *experiment.Experiment, submitter submit.Submitter, resolver *datasets.Resolver, ledger repo.SubmissionRepository, opts ...Option) (*Runner, error) {
	switch {
	case exp == nil:
		return nil, errors.New("experiment is required")
	case submitter == nil:
		return nil, errors.New("submitter is required")
	case resolver == nil:
		return nil, errors.New("dataset resolver is required")
	case ledger == nil:
		return nil, errors.New("submission ledger is required")
	}
	r := &Runner{
		exp:         exp,
		submitter:   submitter,
		resolver:    resolver,
		ledger:      ledger,
		logger:      logging.Discard(),
		parallelism: 1,
		lookup:      os.LookupEnv,
		newID:       shortID,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = NewMetrics()
	}
	return r, nil
}

func (r *Runner) Metrics() *Metrics {
	return r.metrics
}

// environment loads the run environment variables and provisions the
// experiment connections when the submitter supports it.
func (r *Runner) environment(ctx context.Context) (map[string]string, error) {
	env, err := envsubst.LoadEnvFile(filepath.Join(r.exp.BasePath, EnvFile), r.lookup)
	if err != nil {
		return nil, domain.ConfigErrorf("%s", err.Error())
	}

	provisioner, ok := r.submitter.(submit.ConnectionProvisioner)
	resolver := envsubst.New(r.lookup)
	for _, conn := range r.exp.Connections {
		resolved, err := conn.Resolve(resolver)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := provisioner.EnsureConnection(ctx, resolved); err != nil {
			return nil, fmt.Errorf("ensure connection %s: %w", conn.Name, err)
		}
		r.logger.Info("connection ensured", "experiment", r.exp.Name, "connection", conn.Name, "type", conn.Type)
	}
	return env, nil
}

func (r *Runner) tags(extra map[string]string) map[string]string {
	tags := make(map[string]string, len(extra)+1)
	for k, v := range extra {
		tags[k] = v
	}
	if r.buildID != "" {
		tags["build_id"] = r.buildID
	}
	return tags
}

// resources returns the compute hint sent when no runtime is configured.
func (r *Runner) resources() map[string]string {
	if r.exp.Runtime != "" {
		return nil
	}
	return map[string]string{"instance_type": DefaultInstanceType}
}

// lookupExisting returns the ledger record for fingerprint, if any.
func (r *Runner) lookupExisting(ctx context.Context, fingerprint string) (repo.SubmissionRecord, bool, error) {
	rec, err := r.ledger.GetByFingerprint(ctx, r.exp.Name, fingerprint)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return repo.SubmissionRecord{}, false, nil
		}
		return repo.SubmissionRecord{}, false, fmt.Errorf("lookup submission: %w", err)
	}
	return rec, true, nil
}

// submit hands sub to the submitter and records the outcome in the ledger.
func (r *Runner) submit(ctx context.Context, kind string, sub submit.Submission, payload []byte) (Result, error) {
	start := r.now()
	handle, err := r.submitter.Submit(ctx, sub)
	r.metrics.observe(kind, r.now().Sub(start))
	if err != nil {
		r.metrics.failed(kind)
		return Result{}, fmt.Errorf("submit run %s: %w", sub.Name, err)
	}

	rec, created, err := r.ledger.Record(ctx, repo.SubmissionRecord{
		Experiment:  sub.Experiment,
		Fingerprint: sub.Fingerprint,
		Kind:        kind,
		RunName:     handle.Name,
		Dataset:     sub.Dataset,
		Variant:     sub.Variant,
		Status:      handle.Status,
		Payload:     payload,
		CreatedAt:   r.now().UTC(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("record run %s: %w", handle.Name, err)
	}
	r.metrics.submitted(kind, rec.Status)
	if created || !handle.Existing {
		if err := r.auditSubmission(ctx, kind, sub, rec); err != nil {
			return Result{}, err
		}
	}
	return Result{
		Name:        rec.RunName,
		Kind:        kind,
		Dataset:     sub.Dataset,
		Variant:     sub.Variant,
		Status:      rec.Status,
		Fingerprint: sub.Fingerprint,
		Existing:    handle.Existing,
	}, nil
}

func (r *Runner) auditSubmission(ctx context.Context, kind string, sub submit.Submission, rec repo.SubmissionRecord) error {
	if r.audit == nil {
		return nil
	}
	action := auditlog.ActionRunSubmitted
	if kind == repo.KindEvaluation {
		action = auditlog.ActionEvaluationSubmitted
	}
	actor := r.actor
	if actor == "" {
		actor = "flowlab"
	}
	payload := map[string]any{
		"experiment":     sub.Experiment,
		"fingerprint":    sub.Fingerprint,
		"dataset":        sub.Dataset,
		"data_reference": sub.DataReference,
		"status":         rec.Status,
	}
	if sub.Variant != "" {
		payload["variant"] = sub.Variant
	}
	if sub.Run != "" {
		payload["run"] = sub.Run
	}
	if r.buildID != "" {
		payload["build_id"] = r.buildID
	}
	err := r.audit.Record(ctx, auditlog.Event{
		OccurredAt:   r.now().UTC(),
		Actor:        actor,
		Action:       action,
		ResourceType: kind + "_run",
		ResourceID:   rec.RunName,
		Payload:      payload,
	})
	if err != nil {
		return fmt.Errorf("audit run %s: %w", rec.RunName, err)
	}
	return nil
}

func existingResult(rec repo.SubmissionRecord) Result {
	return Result{
		Name:        rec.RunName,
		Kind:        rec.Kind,
		Dataset:     rec.Dataset,
		Variant:     rec.Variant,
		Status:      rec.Status,
		Fingerprint: rec.Fingerprint,
		Existing:    true,
	}
}

func runPayload(run domain.PlannedRun) ([]byte, error) {
	raw, err := plan.MarshalRunPlan([]domain.PlannedRun{run})
	if err != nil {
		return nil, fmt.Errorf("encode planned run: %w", err)
	}
	return raw, nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
