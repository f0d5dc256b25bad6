package domain

import (
	"maps"
	"os"
	"path/filepath"
	"strings"
)

// RegistryScheme prefixes dataset sources that live in the dataset registry,
// e.g. "registry:web_classification:3".
const RegistryScheme = "registry"

// DefaultDataDir is the fallback directory for local dataset sources.
const DefaultDataDir = "data"

// Dataset is a named data source: a registry reference or a local file.
type Dataset struct {
	Name        string
	Source      string
	Description string
	Reference   string
}

// NewDataset builds a Dataset and enforces that registry sources carry no
// description.
func NewDataset(name, source, description, reference string) (Dataset, error) {
	ds := Dataset{
		Name:        name,
		Source:      source,
		Description: description,
		Reference:   reference,
	}
	if ds.IsRegistrySource() && strings.TrimSpace(description) != "" {
		return Dataset{}, ConfigErrorf("dataset '%s' description not supported for registry source %s", name, source)
	}
	return ds, nil
}

// WithMappings binds the dataset to a column mapping.
func (d Dataset) WithMappings(mappings map[string]string) MappedDataset {
	if mappings == nil {
		mappings = map[string]string{}
	}
	return MappedDataset{Dataset: d, Mappings: mappings}
}

// IsEval reports whether the dataset references a standard dataset.
func (d Dataset) IsEval() bool {
	return d.Reference != ""
}

func (d Dataset) IsRegistrySource() bool {
	return strings.HasPrefix(d.Source, RegistryScheme+":")
}

// RegistryRef splits a registry source into name and version.
func (d Dataset) RegistryRef() (name, version string, ok bool) {
	if !d.IsRegistrySource() {
		return "", "", false
	}
	parts := strings.Split(d.Source, ":")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// LocalSource returns the filesystem path of a local dataset. The source is
// looked up relative to basePath first and under basePath/data otherwise.
// Registry datasets have no local source.
func (d Dataset) LocalSource(basePath string) string {
	if d.IsRegistrySource() {
		return ""
	}
	candidate := filepath.Join(basePath, d.Source)
	if _, err := os.Stat(candidate); err == nil {
		if abs, err := filepath.Abs(candidate); err == nil {
			return abs
		}
		return candidate
	}
	return filepath.Join(basePath, DefaultDataDir, d.Source)
}

func (d Dataset) Equal(other Dataset) bool {
	return d == other
}

// MappedDataset binds a Dataset to the flow inputs it feeds. Mapping values
// are dataset column references ("${data.col}") or previous run outputs
// ("${run.outputs.col}").
type MappedDataset struct {
	Dataset  Dataset
	Mappings map[string]string
}

func (m MappedDataset) Equal(other MappedDataset) bool {
	return m.Dataset.Equal(other.Dataset) && maps.Equal(m.Mappings, other.Mappings)
}
