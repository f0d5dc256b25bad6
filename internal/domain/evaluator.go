package domain

import "slices"

// Evaluator is an evaluation flow and the datasets it scores against.
type Evaluator struct {
	Name     string
	Path     string
	Datasets []MappedDataset
}

// FindDatasetWithReference returns every mapped dataset that evaluates the
// standard dataset datasetName, either through its reference or by reusing
// the standard dataset itself. An empty result means the evaluator does not
// apply.
func (e Evaluator) FindDatasetWithReference(datasetName string) []MappedDataset {
	var out []MappedDataset
	for _, mapped := range e.Datasets {
		if mapped.Dataset.Reference == datasetName || mapped.Dataset.Name == datasetName {
			out = append(out, mapped)
		}
	}
	return out
}

func (e Evaluator) Equal(other Evaluator) bool {
	if e.Name != other.Name || e.Path != other.Path {
		return false
	}
	return slices.EqualFunc(e.Datasets, other.Datasets, MappedDataset.Equal)
}
