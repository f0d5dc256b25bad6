package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/animus-labs/flowlab/internal/datasets"
	"github.com/animus-labs/flowlab/internal/domain"
	"github.com/animus-labs/flowlab/internal/execution/submit"
	"github.com/animus-labs/flowlab/internal/execution/variants"
	"github.com/animus-labs/flowlab/internal/experiment"
	"github.com/animus-labs/flowlab/internal/platform/auditlog"
	"github.com/animus-labs/flowlab/internal/repo/memory"
)

const experimentDoc = `
name: web
flow: ab
datasets:
- name: ds1
  source: ds1.jsonl
  mappings:
    url: "${data.url}"
- name: ds2
  source: registry:ds2:2
  mappings:
    url: "${data.url}"
evaluators:
- name: accuracy
  flow: eval
  datasets:
  - name: ds1_eval
    source: ds1_eval.jsonl
    reference: ds1
    mappings:
      groundtruth: "${data.answer}"
      prediction: "${run.outputs.category}"
connections:
- name: aoai
  connection_type: AzureOpenAIConnection
  api_key: "${api_key}"
`

const abFlow = `
nodes:
- {name: A, type: llm}
- {name: B, type: llm}
node_variants:
  A:
    default_variant_id: a0
    variants: {a0: {}, a1: {}}
  B:
    default_variant_id: b0
    variants: {b0: {}, b1: {}}
`

type recordingSubmitter struct {
	mu          sync.Mutex
	subs        []submit.Submission
	connections []domain.Connection
	failDataset string
}

func (s *recordingSubmitter) Submit(_ context.Context, sub submit.Submission) (submit.Handle, error) {
	if err := sub.Validate(); err != nil {
		return submit.Handle{}, err
	}
	if sub.Dataset == s.failDataset {
		return submit.Handle{}, errors.New("service unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
	return submit.Handle{Name: sub.Name, Status: submit.StatusCompleted}, nil
}

func (s *recordingSubmitter) EnsureConnection(_ context.Context, conn domain.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections = append(s.connections, conn)
	return nil
}

func (s *recordingSubmitter) byName() map[string]submit.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]submit.Submission, len(s.subs))
	for _, sub := range s.subs {
		out[sub.Name] = sub
	}
	return out
}

func (s *recordingSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func writeWorkspace(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	files := map[string]string{
		"experiment.yaml":          experimentDoc,
		"flows/ab/flow.dag.yaml":   abFlow,
		"flows/eval/flow.dag.yaml": "nodes:\n- {name: score, type: python}\n",
		"ds1.jsonl":                `{"url": "https://example.com"}` + "\n",
		"ds1_eval.jsonl":           `{"url": "https://example.com", "answer": "x"}` + "\n",
		"environment/env.yaml":     "api_base: https://api.example.com\nsecret_ref: ${SECRET}\n",
	}
	for name, content := range files {
		path := filepath.Join(base, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return base
}

func lookupFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func newTestRunner(t *testing.T, base string, sub submit.Submitter, ledger *memory.SubmissionStore) *Runner {
	t.Helper()
	exp, err := experiment.LoadExperiment("", base, "")
	if err != nil {
		t.Fatalf("LoadExperiment() err=%v", err)
	}
	r, err := New(exp, sub, datasets.NewResolver(nil, base), ledger,
		WithBuildID("42"),
		WithParallelism(2),
		WithLookup(lookupFrom(map[string]string{"SECRET": "s3", "AOAI_API_KEY": "k"})),
	)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	var seq atomic.Int64
	r.newID = func() string { return fmt.Sprintf("%04d", seq.Add(1)) }
	return r
}

func TestStandardSubmitsEveryPlannedRun(t *testing.T) {
	base := writeWorkspace(t)
	sub := &recordingSubmitter{}
	r := newTestRunner(t, base, sub, memory.NewSubmissionStore())

	results, err := r.Standard(context.Background(), variants.All())
	if err != nil {
		t.Fatalf("Standard() err=%v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 runs, got %d", len(results))
	}
	want := []struct{ dataset, variant, prefix string }{
		{"ds1", "${A.a1}", "web_a1_ds1_"},
		{"ds1", "${B.b1}", "web_b1_ds1_"},
		{"ds2", "${A.a1}", "web_a1_ds2_"},
		{"ds2", "${B.b1}", "web_b1_ds2_"},
	}
	for i, w := range want {
		got := results[i]
		if got.Dataset != w.dataset || got.Variant != w.variant || !strings.HasPrefix(got.Name, w.prefix) || got.Existing {
			t.Fatalf("result[%d]=%+v, want %+v", i, got, w)
		}
	}

	subs := sub.byName()
	first := subs[results[0].Name]
	if first.DataReference != filepath.Join(base, "ds1.jsonl") {
		t.Fatalf("DataReference=%q", first.DataReference)
	}
	if subs[results[2].Name].DataReference != "registry:ds2:2" {
		t.Fatalf("expected registry reference, got %q", subs[results[2].Name].DataReference)
	}
	if first.Tags["build_id"] != "42" || first.Resources["instance_type"] != DefaultInstanceType {
		t.Fatalf("unexpected tags=%v resources=%v", first.Tags, first.Resources)
	}
	if first.EnvironmentVariables["API_BASE"] != "https://api.example.com" || first.EnvironmentVariables["SECRET_REF"] != "s3" {
		t.Fatalf("unexpected env %v", first.EnvironmentVariables)
	}
	if len(sub.connections) != 1 || sub.connections[0].Properties["api_key"] != "k" {
		t.Fatalf("unexpected connections %+v", sub.connections)
	}
}

func TestStandardSkipsRecordedRuns(t *testing.T) {
	base := writeWorkspace(t)
	sub := &recordingSubmitter{}
	ledger := memory.NewSubmissionStore()
	r := newTestRunner(t, base, sub, ledger)

	first, err := r.Standard(context.Background(), variants.All())
	if err != nil {
		t.Fatalf("Standard() err=%v", err)
	}
	second, err := r.Standard(context.Background(), variants.All())
	if err != nil {
		t.Fatalf("second Standard() err=%v", err)
	}
	if sub.count() != 4 {
		t.Fatalf("expected 4 submissions, got %d", sub.count())
	}
	for i := range second {
		if !second[i].Existing || second[i].Name != first[i].Name {
			t.Fatalf("result[%d]=%+v, want existing %s", i, second[i], first[i].Name)
		}
	}

	other := newTestRunner(t, base, sub, ledger)
	WithBuildID("43")(other)
	if _, err := other.Standard(context.Background(), variants.All()); err != nil {
		t.Fatalf("Standard() with new build err=%v", err)
	}
	if sub.count() != 8 {
		t.Fatalf("expected a new build to submit again, got %d submissions", sub.count())
	}
}

func TestStandardDefaultsOnly(t *testing.T) {
	base := writeWorkspace(t)
	sub := &recordingSubmitter{}
	r := newTestRunner(t, base, sub, memory.NewSubmissionStore())

	results, err := r.Standard(context.Background(), variants.DefaultsOnly())
	if err != nil {
		t.Fatalf("Standard() err=%v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected one default run per dataset, got %d", len(results))
	}
	for _, res := range results {
		if res.Variant != "" || !strings.HasPrefix(res.Name, "web_default_"+res.Dataset+"_") {
			t.Fatalf("unexpected default run %+v", res)
		}
	}
}

func TestStandardReportsSubmitterErrors(t *testing.T) {
	base := writeWorkspace(t)
	sub := &recordingSubmitter{failDataset: "ds2"}
	r := newTestRunner(t, base, sub, memory.NewSubmissionStore())

	_, err := r.Standard(context.Background(), variants.All())
	if err == nil || !strings.Contains(err.Error(), "service unavailable") {
		t.Fatalf("expected submitter error, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "flowlab.prom")
	if err := r.Metrics().WriteFile(path); err != nil {
		t.Fatalf("WriteFile() err=%v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(raw), `flowlab_runs_submit_errors_total{kind="standard"} 1`) {
		t.Fatalf("expected one submit error in metrics:\n%s", raw)
	}
}

func TestEvaluateScoresMatchingRuns(t *testing.T) {
	base := writeWorkspace(t)
	sub := &recordingSubmitter{}
	r := newTestRunner(t, base, sub, memory.NewSubmissionStore())

	standard, err := r.Standard(context.Background(), variants.All())
	if err != nil {
		t.Fatalf("Standard() err=%v", err)
	}
	names := make([]string, 0, len(standard))
	for _, res := range standard {
		names = append(names, res.Name)
	}

	results, err := r.Evaluate(context.Background(), names)
	if err != nil {
		t.Fatalf("Evaluate() err=%v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected the two ds1 runs to be evaluated, got %d", len(results))
	}

	subs := sub.byName()
	eval := subs[results[0].Name]
	if eval.Run != standard[0].Name || eval.Dataset != "ds1_eval" || !eval.IsEvaluation() {
		t.Fatalf("unexpected evaluation %+v", eval)
	}
	if eval.Tags["A"] != "a1" || eval.Tags["B"] != "b0" || eval.Tags["evaluator"] != "accuracy" || eval.Tags["build_id"] != "42" {
		t.Fatalf("unexpected evaluation tags %v", eval.Tags)
	}
	if !strings.HasPrefix(eval.Name, "web_eval_accuracy_ds1_eval_") {
		t.Fatalf("unexpected evaluation name %s", eval.Name)
	}
	if eval.ColumnMapping["prediction"] != "${run.outputs.category}" {
		t.Fatalf("unexpected evaluation mapping %v", eval.ColumnMapping)
	}

	again, err := r.Evaluate(context.Background(), names)
	if err != nil {
		t.Fatalf("second Evaluate() err=%v", err)
	}
	for _, res := range again {
		if !res.Existing {
			t.Fatalf("expected evaluation to be recorded, got %+v", res)
		}
	}
}

func TestEvaluateUnknownRun(t *testing.T) {
	base := writeWorkspace(t)
	r := newTestRunner(t, base, &recordingSubmitter{}, memory.NewSubmissionStore())

	_, err := r.Evaluate(context.Background(), []string{"missing"})
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestAssignmentFor(t *testing.T) {
	defaults := map[string]string{"A": "a0", "B": "b0"}
	tests := []struct {
		variant string
		want    map[string]string
	}{
		{variant: "", want: map[string]string{"A": "a0", "B": "b0"}},
		{variant: "${A.a1}", want: map[string]string{"A": "a1", "B": "b0"}},
		{variant: "${C.c1}", want: map[string]string{"A": "a0", "B": "b0", "C": "c1"}},
		{variant: "A.a1", want: map[string]string{"A": "a0", "B": "b0"}},
	}
	for _, tt := range tests {
		got := assignmentFor(tt.variant, defaults)
		if len(got) != len(tt.want) {
			t.Fatalf("assignmentFor(%q)=%v, want %v", tt.variant, got, tt.want)
		}
		for k, v := range tt.want {
			if got[k] != v {
				t.Fatalf("assignmentFor(%q)=%v, want %v", tt.variant, got, tt.want)
			}
		}
	}
	if defaults["A"] != "a0" {
		t.Fatalf("defaults mutated: %v", defaults)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	exp := &experiment.Experiment{Name: "web"}
	resolver := datasets.NewResolver(nil, "")
	if _, err := New(nil, &recordingSubmitter{}, resolver, memory.NewSubmissionStore()); err == nil {
		t.Fatalf("expected error for nil experiment")
	}
	if _, err := New(exp, nil, resolver, memory.NewSubmissionStore()); err == nil {
		t.Fatalf("expected error for nil submitter")
	}
	if _, err := New(exp, &recordingSubmitter{}, resolver, nil); err == nil {
		t.Fatalf("expected error for nil ledger")
	}
}

type memorySink struct {
	mu     sync.Mutex
	events []auditlog.Event
}

func (s *memorySink) Record(_ context.Context, event auditlog.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func TestSubmissionsAreAudited(t *testing.T) {
	base := writeWorkspace(t)
	sink := &memorySink{}
	r := newTestRunner(t, base, &recordingSubmitter{}, memory.NewSubmissionStore())
	WithAudit(sink, "ci")(r)

	standard, err := r.Standard(context.Background(), variants.Custom("A.a1"))
	if err != nil {
		t.Fatalf("Standard() err=%v", err)
	}
	if _, err := r.Standard(context.Background(), variants.Custom("A.a1")); err != nil {
		t.Fatalf("second Standard() err=%v", err)
	}
	if len(sink.events) != len(standard) {
		t.Fatalf("expected %d audit events, got %d", len(standard), len(sink.events))
	}
	// Datasets submit concurrently, so events arrive in completion order.
	var event auditlog.Event
	found := false
	for _, e := range sink.events {
		if e.ResourceID == standard[0].Name {
			event, found = e, true
		}
	}
	if !found {
		t.Fatalf("no audit event for run %s in %+v", standard[0].Name, sink.events)
	}
	if event.Action != auditlog.ActionRunSubmitted || event.Actor != "ci" {
		t.Fatalf("unexpected audit event %+v", event)
	}
	payload, ok := event.Payload.(map[string]any)
	if !ok || payload["build_id"] != "42" || payload["variant"] != "${A.a1}" {
		t.Fatalf("unexpected audit payload %v", event.Payload)
	}
}
