package auditlog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func sampleEvent() Event {
	return Event{
		OccurredAt:   time.Unix(1700000000, 0).UTC(),
		Actor:        "ci",
		Action:       ActionRunSubmitted,
		ResourceType: "run",
		ResourceID:   "web_a1_ds1_0001",
		Payload:      map[string]any{"dataset": "ds1", "variant": "${A.a1}"},
	}
}

func TestComputeIntegritySHA256Deterministic(t *testing.T) {
	event := sampleEvent()
	payload, _ := json.Marshal(event.Payload)

	a, err := ComputeIntegritySHA256(event, payload)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	b, err := ComputeIntegritySHA256(event, payload)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a != b || len(a) != 64 {
		t.Fatalf("expected stable hex digest, got %q and %q", a, b)
	}

	event.ResourceID = "web_b1_ds1_0002"
	c, _ := ComputeIntegritySHA256(event, payload)
	if c == a {
		t.Fatalf("expected resource id to change the digest")
	}
}

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Event)
	}{
		{name: "actor", mutate: func(e *Event) { e.Actor = " " }},
		{name: "action", mutate: func(e *Event) { e.Action = "" }},
		{name: "resource type", mutate: func(e *Event) { e.ResourceType = "" }},
		{name: "resource id", mutate: func(e *Event) { e.ResourceID = "" }},
		{name: "occurred at", mutate: func(e *Event) { e.OccurredAt = time.Time{} }},
	}
	for _, tt := range tests {
		event := sampleEvent()
		tt.mutate(&event)
		if err := event.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tt.name)
		}
	}
}

func TestLogSinkRecord(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))
	if err := sink.Record(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Record() err=%v", err)
	}
	out := buf.String()
	for _, want := range []string{`"action":"run.submitted"`, `"resource_id":"web_a1_ds1_0001"`, `"integrity_sha256":"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}

	bad := sampleEvent()
	bad.Actor = ""
	if err := sink.Record(context.Background(), bad); err == nil {
		t.Fatalf("expected invalid event to be rejected")
	}
}

func TestQueriesTargetAuditEvents(t *testing.T) {
	if !strings.Contains(createAuditEventsTableQuery, "CREATE TABLE IF NOT EXISTS audit_events") {
		t.Fatalf("unexpected create query")
	}
	if !strings.Contains(insertAuditEventQuery, "RETURNING event_id") || strings.Count(insertAuditEventQuery, "$") != 8 {
		t.Fatalf("unexpected insert query")
	}
}

func TestInsertRequiresQueryer(t *testing.T) {
	if _, err := Insert(context.Background(), nil, sampleEvent()); err == nil {
		t.Fatalf("expected error")
	}
	if err := Migrate(context.Background(), nil); err == nil {
		t.Fatalf("expected error")
	}
}
