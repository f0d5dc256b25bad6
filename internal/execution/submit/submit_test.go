package submit

import (
	"errors"
	"strings"
	"testing"

	"github.com/animus-labs/flowlab/internal/execution/specvalidator"
)

const testFingerprint = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func validSubmission() Submission {
	return Submission{
		Name:          "web_classification_ds1_summarize_variant_1_0b6f",
		Experiment:    "web_classification",
		Fingerprint:   testFingerprint,
		FlowPath:      "/work/flows/web_classification",
		Dataset:       "ds1",
		DataReference: "registry:ds1:3",
		Variant:       "${summarize.variant_1}",
		ColumnMapping: map[string]string{"url": "${data.url}"},
	}
}

func TestSubmissionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Submission)
		wantErr bool
	}{
		{name: "ok", mutate: func(*Submission) {}},
		{name: "default variant", mutate: func(s *Submission) { s.Variant = "" }},
		{name: "missing name", mutate: func(s *Submission) { s.Name = "" }, wantErr: true},
		{name: "short fingerprint", mutate: func(s *Submission) { s.Fingerprint = "abc" }, wantErr: true},
		{name: "malformed variant", mutate: func(s *Submission) { s.Variant = "summarize.variant_1" }, wantErr: true},
		{name: "blank mapping key", mutate: func(s *Submission) { s.ColumnMapping = map[string]string{"": "x"} }, wantErr: true},
		{name: "missing data reference", mutate: func(s *Submission) { s.DataReference = "" }, wantErr: true},
	}
	for _, tt := range tests {
		sub := validSubmission()
		tt.mutate(&sub)
		if err := sub.Validate(); (err != nil) != tt.wantErr {
			t.Fatalf("%s: expected err=%v, got %v", tt.name, tt.wantErr, err)
		}
	}
}

func TestSubmissionValidateReportsFields(t *testing.T) {
	err := Submission{}.Validate()
	var verr *specvalidator.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), "FlowPath failed required") {
		t.Fatalf("expected FlowPath issue in %q", verr.Error())
	}
}
