package domain

import "testing"

func TestAssignmentKeyIsOrderIndependent(t *testing.T) {
	a := AssignmentKey(map[string]string{"A": "a1", "B": "b0"}, "ds1")
	b := AssignmentKey(map[string]string{"B": "b0", "A": "a1"}, "ds1")
	if a != b {
		t.Fatalf("expected equal keys, got %q vs %q", a, b)
	}
	if a == AssignmentKey(map[string]string{"A": "a1", "B": "b0"}, "ds2") {
		t.Fatalf("expected dataset to be part of the key")
	}
}

func TestVariantString(t *testing.T) {
	if got := VariantString("summarize", "variant_1"); got != "${summarize.variant_1}" {
		t.Fatalf("VariantString()=%q", got)
	}
}
