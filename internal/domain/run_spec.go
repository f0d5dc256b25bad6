package domain

import (
	"maps"
	"sort"
	"strings"
)

// PlannedRun is one flow invocation the planner decided to submit.
// Variant is empty for a run using only the default variants.
type PlannedRun struct {
	Dataset       Dataset
	ColumnMapping map[string]string
	Node          string
	VariantID     string
	Variant       string
	Assignment    map[string]string
}

// IsDefault reports whether the run overrides no variant.
func (r PlannedRun) IsDefault() bool {
	return r.Variant == ""
}

// Key is the canonical identity of the run: the sorted node=variant
// assignment plus the dataset name.
func (r PlannedRun) Key() string {
	return AssignmentKey(r.Assignment, r.Dataset.Name)
}

// AssignmentKey renders assignment and dataset as a canonical string.
func AssignmentKey(assignment map[string]string, dataset string) string {
	nodes := make([]string, 0, len(assignment))
	for node := range assignment {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	var b strings.Builder
	for _, node := range nodes {
		b.WriteString(node)
		b.WriteByte('=')
		b.WriteString(assignment[node])
		b.WriteByte(';')
	}
	b.WriteString("dataset=")
	b.WriteString(dataset)
	return b.String()
}

// VariantString renders the submission variant selector for node.variant.
func VariantString(node, variant string) string {
	return "${" + node + "." + variant + "}"
}

func (r PlannedRun) Equal(other PlannedRun) bool {
	return r.Dataset.Equal(other.Dataset) &&
		maps.Equal(r.ColumnMapping, other.ColumnMapping) &&
		r.Node == other.Node &&
		r.VariantID == other.VariantID &&
		r.Variant == other.Variant &&
		maps.Equal(r.Assignment, other.Assignment)
}
