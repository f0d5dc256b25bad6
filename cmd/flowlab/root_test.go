package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/animus-labs/flowlab/internal/domain"
	"github.com/animus-labs/flowlab/internal/execution/plan"
	"github.com/animus-labs/flowlab/internal/runner"
)

const cliExperiment = `
name: web
flow: ab
datasets:
- name: ds1
  source: ds1.jsonl
  mappings:
    url: "${data.url}"
evaluators:
- name: accuracy
  flow: eval
  datasets:
  - name: ds1
    mappings:
      prediction: "${run.outputs.category}"
`

const cliFlow = `
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

func writeCLIWorkspace(t *testing.T) string {
	t.Helper()
	t.Setenv("FLOWLAB_DATABASE_URL", "")
	t.Setenv("FLOWLAB_DATASET_REGISTRY", "")
	t.Setenv("FLOWLAB_ENV_NAME", "")
	base := t.TempDir()
	files := map[string]string{
		"experiment.yaml":          cliExperiment,
		"flows/ab/flow.dag.yaml":   cliFlow,
		"flows/eval/flow.dag.yaml": "nodes:\n- {name: score, type: python}\n",
		"ds1.jsonl":                `{"url": "https://example.com"}` + "\n",
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

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(io.Discard)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	base := writeCLIWorkspace(t)
	out, err := runCLI(t, "validate", "--base-path", base)
	if err != nil {
		t.Fatalf("validate err=%v", err)
	}
	for _, want := range []string{"experiment:  web", "(dag)", "llm nodes:   A, B", "variants:    A default=a0 extra=a1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestPlanCommand(t *testing.T) {
	base := writeCLIWorkspace(t)
	tests := []struct {
		variants string
		want     int
	}{
		{variants: "*", want: 2},
		{variants: "defaults", want: 1},
		{variants: "B.b1", want: 1},
		{variants: "unknown", want: 0},
	}
	for _, tt := range tests {
		output := filepath.Join(t.TempDir(), "plan.json")
		if _, err := runCLI(t, "plan", "--base-path", base, "--variants", tt.variants, "--output", output); err != nil {
			t.Fatalf("plan --variants %s err=%v", tt.variants, err)
		}
		raw, err := os.ReadFile(output)
		if err != nil {
			t.Fatalf("read plan: %v", err)
		}
		runs, err := plan.UnmarshalRunPlan(raw)
		if err != nil {
			t.Fatalf("decode plan: %v", err)
		}
		if len(runs) != tt.want {
			t.Fatalf("--variants %s: expected %d runs, got %d", tt.variants, tt.want, len(runs))
		}
	}
}

func TestRunCommandWritesRunIDsAndEvaluates(t *testing.T) {
	base := writeCLIWorkspace(t)
	dir := t.TempDir()
	runIDs := filepath.Join(dir, "run_ids.json")
	metrics := filepath.Join(dir, "flowlab.prom")

	out, err := runCLI(t, "run", "--base-path", base, "--build-id", "7", "--output-file", runIDs, "--metrics-file", metrics, "--evaluate", "--parallelism", "2")
	if err != nil {
		t.Fatalf("run err=%v", err)
	}
	names, err := runner.ReadRunIDs(runIDs)
	if err != nil {
		t.Fatalf("ReadRunIDs() err=%v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 run ids, got %v", names)
	}
	if got := strings.Count(out, "evaluation\t"); got != 2 {
		t.Fatalf("expected 2 evaluations, got %d:\n%s", got, out)
	}
	raw, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(raw), `flowlab_runs_submitted_total{kind="standard",status="Completed"} 2`) {
		t.Fatalf("unexpected metrics:\n%s", raw)
	}
}

func TestExitCodes(t *testing.T) {
	base := writeCLIWorkspace(t)
	_, err := runCLI(t, "validate", "--base-path", base, "--file", "missing.yaml")
	if err == nil {
		t.Fatalf("expected error for missing experiment file")
	}
	if code := exitCode(err); code != 2 {
		t.Fatalf("exitCode=%d, want 2 for %v", code, err)
	}
	if code := exitCode(errors.New("boom")); code != 1 {
		t.Fatalf("exitCode=%d, want 1", code)
	}
	if code := exitCode(domain.ConfigErrorf("bad")); code != 2 {
		t.Fatalf("exitCode=%d, want 2", code)
	}
}

func TestEvaluateRequiresRuns(t *testing.T) {
	base := writeCLIWorkspace(t)
	if _, err := runCLI(t, "evaluate", "--base-path", base); err == nil {
		t.Fatalf("expected missing --runs to fail")
	}
}
