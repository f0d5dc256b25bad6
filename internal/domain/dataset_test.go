package domain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewDatasetRejectsDescriptionOnRegistrySource(t *testing.T) {
	_, err := NewDataset("groundedness", "registry:groundedness:9", "described twice", "")
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}

	ds, err := NewDataset("recall", "recall.jsonl", "recall set", "")
	if err != nil {
		t.Fatalf("NewDataset() err=%v", err)
	}
	if ds.IsRegistrySource() || ds.IsEval() {
		t.Fatalf("expected local standard dataset, got %+v", ds)
	}
}

func TestRegistryRef(t *testing.T) {
	tests := []struct {
		source  string
		name    string
		version string
		ok      bool
	}{
		{source: "registry:groundedness:9", name: "groundedness", version: "9", ok: true},
		{source: "registry:groundedness", ok: false},
		{source: "registry::1", ok: false},
		{source: "data/groundedness.jsonl", ok: false},
	}
	for _, tt := range tests {
		ds := Dataset{Name: "ds", Source: tt.source}
		name, version, ok := ds.RegistryRef()
		if ok != tt.ok || name != tt.name || version != tt.version {
			t.Fatalf("%s: RegistryRef()=(%q,%q,%v), want (%q,%q,%v)", tt.source, name, version, ok, tt.name, tt.version, tt.ok)
		}
	}
}

func TestLocalSource(t *testing.T) {
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "present.jsonl"), []byte("{}\n"), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}

	present := Dataset{Name: "present", Source: "present.jsonl"}
	got := present.LocalSource(base)
	if !filepath.IsAbs(got) || filepath.Base(got) != "present.jsonl" {
		t.Fatalf("LocalSource()=%q, want absolute path to present.jsonl", got)
	}

	missing := Dataset{Name: "missing", Source: "missing.jsonl"}
	if got := missing.LocalSource(base); got != filepath.Join(base, DefaultDataDir, "missing.jsonl") {
		t.Fatalf("LocalSource()=%q, want data dir fallback", got)
	}

	remote := Dataset{Name: "remote", Source: "registry:remote:1"}
	if got := remote.LocalSource(base); got != "" {
		t.Fatalf("LocalSource()=%q, want empty for registry source", got)
	}
}

func TestMappedDatasetEqual(t *testing.T) {
	ds := Dataset{Name: "ds1", Source: "ds1.jsonl"}
	a := ds.WithMappings(map[string]string{"url": "${data.url}", "answer": "${data.answer}"})
	b := ds.WithMappings(map[string]string{"answer": "${data.answer}", "url": "${data.url}"})
	if !a.Equal(b) {
		t.Fatalf("expected mapping order to be irrelevant")
	}
	c := ds.WithMappings(map[string]string{"url": "${data.link}"})
	if a.Equal(c) {
		t.Fatalf("expected different mappings to be unequal")
	}
	if got := ds.WithMappings(nil).Mappings; got == nil {
		t.Fatalf("expected nil mappings to become an empty map")
	}
}
