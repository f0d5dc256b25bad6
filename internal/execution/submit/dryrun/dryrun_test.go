package dryrun

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/animus-labs/flowlab/internal/domain"
	"github.com/animus-labs/flowlab/internal/execution/submit"
	"github.com/animus-labs/flowlab/internal/repo"
	"github.com/animus-labs/flowlab/internal/repo/memory"
)

func sampleSubmission(fingerprintChar string) submit.Submission {
	return submit.Submission{
		Name:                 "exp_ds1_run",
		Experiment:           "exp",
		Fingerprint:          strings.Repeat(fingerprintChar, 64),
		FlowPath:             "/work/flows/exp",
		Dataset:              "ds1",
		DataReference:        "registry:ds1:1",
		Variant:              "${summarize.variant_1}",
		ColumnMapping:        map[string]string{"url": "${data.url}"},
		EnvironmentVariables: map[string]string{"API_KEY": "secret"},
		Tags:                 map[string]string{"build_id": "42"},
	}
}

func TestSubmitRecordsOnceByFingerprint(t *testing.T) {
	store := memory.NewSubmissionStore()
	sub := New(store)
	sub.now = func() time.Time { return time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	first, err := sub.Submit(ctx, sampleSubmission("a"))
	if err != nil {
		t.Fatalf("Submit() err=%v", err)
	}
	if first.Status != submit.StatusCompleted || first.Existing {
		t.Fatalf("unexpected handle %+v", first)
	}

	again := sampleSubmission("a")
	again.Name = "exp_ds1_run_retry"
	second, err := sub.Submit(ctx, again)
	if err != nil {
		t.Fatalf("second Submit() err=%v", err)
	}
	if !second.Existing || second.Name != "exp_ds1_run" {
		t.Fatalf("expected existing submission, got %+v", second)
	}

	records, err := store.List(ctx, repo.SubmissionFilter{Experiment: "exp"})
	if err != nil {
		t.Fatalf("List() err=%v", err)
	}
	if len(records) != 1 || records[0].Kind != repo.KindStandard {
		t.Fatalf("unexpected records %+v", records)
	}
	var payload map[string]any
	if err := json.Unmarshal(records[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["dry_run"] != true {
		t.Fatalf("expected dry_run payload, got %v", payload)
	}
	if strings.Contains(string(records[0].Payload), "secret") {
		t.Fatalf("environment variables leaked into ledger payload")
	}
}

func TestSubmitDeterministicOutcome(t *testing.T) {
	decide := func(fingerprint string) float64 {
		if strings.HasPrefix(fingerprint, "b") {
			return 0.1
		}
		return 0.9
	}
	sub := New(memory.NewSubmissionStore(), WithFailureRate(0.5))
	sub.decide = decide

	failed, err := sub.Submit(context.Background(), sampleSubmission("b"))
	if err != nil {
		t.Fatalf("Submit() err=%v", err)
	}
	if failed.Status != submit.StatusFailed {
		t.Fatalf("expected failure, got %s", failed.Status)
	}
	ok, err := sub.Submit(context.Background(), sampleSubmission("c"))
	if err != nil {
		t.Fatalf("Submit() err=%v", err)
	}
	if ok.Status != submit.StatusCompleted {
		t.Fatalf("expected completion, got %s", ok.Status)
	}

	if deterministicScore("x") != deterministicScore("x") {
		t.Fatalf("expected stable score")
	}
}

func TestSubmitEvaluationKind(t *testing.T) {
	store := memory.NewSubmissionStore()
	sub := New(store)
	eval := sampleSubmission("d")
	eval.Run = "exp_ds1_run"
	if _, err := sub.Submit(context.Background(), eval); err != nil {
		t.Fatalf("Submit() err=%v", err)
	}
	records, _ := store.List(context.Background(), repo.SubmissionFilter{Kind: repo.KindEvaluation})
	if len(records) != 1 {
		t.Fatalf("expected one evaluation record, got %+v", records)
	}
}

func TestSubmitRejectsInvalid(t *testing.T) {
	sub := New(memory.NewSubmissionStore())
	bad := sampleSubmission("a")
	bad.Fingerprint = "short"
	if _, err := sub.Submit(context.Background(), bad); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestEnsureConnection(t *testing.T) {
	sub := New(memory.NewSubmissionStore())
	ctx := context.Background()
	for _, conn := range []domain.Connection{
		{Name: "search", Type: "CustomConnection"},
		{Name: "aoai", Type: "AzureOpenAIConnection"},
	} {
		if err := sub.EnsureConnection(ctx, conn); err != nil {
			t.Fatalf("EnsureConnection() err=%v", err)
		}
	}
	if got := sub.Connections(); !reflect.DeepEqual(got, []string{"aoai", "search"}) {
		t.Fatalf("Connections()=%v", got)
	}
	if err := sub.EnsureConnection(ctx, domain.Connection{Name: "x"}); err == nil {
		t.Fatalf("expected missing type error")
	}
}
