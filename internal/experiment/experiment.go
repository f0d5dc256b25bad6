// Package experiment loads declarative experiment descriptions into the
// domain model.
package experiment

import (
	"sync"

	"github.com/animus-labs/flowlab/internal/domain"
	"github.com/animus-labs/flowlab/internal/flow"
)

// DefaultFilename is read when LoadExperiment gets no filename.
const DefaultFilename = "experiment.yaml"

// Experiment is the resolved description of one flow experiment. It is
// built by LoadExperiment and read-only afterwards.
type Experiment struct {
	BasePath    string
	Name        string
	Flow        string
	Datasets    []domain.MappedDataset
	Evaluators  []domain.Evaluator
	Connections []domain.Connection
	Runtime     string

	detailMu sync.Mutex
	detail   *domain.FlowVariantMap
}

// Dataset returns the standard dataset registered under name.
func (e *Experiment) Dataset(name string) (domain.Dataset, bool) {
	for i := len(e.Datasets) - 1; i >= 0; i-- {
		if e.Datasets[i].Dataset.Name == name {
			return e.Datasets[i].Dataset, true
		}
	}
	return domain.Dataset{}, false
}

// FlowPath returns the directory of the experiment flow. DAG and code
// flows resolve the same way.
func (e *Experiment) FlowPath() string {
	return resolveFlowDir(e.BasePath, e.Flow)
}

// DetectFlow reports the kind of the experiment flow. An experiment whose
// flow directory holds no descriptor is misconfigured.
func (e *Experiment) DetectFlow() (flow.Type, error) {
	dir := e.FlowPath()
	t, err := flow.Detect(dir)
	if err != nil {
		return flow.TypeNone, err
	}
	if t == flow.TypeNone {
		return flow.TypeNone, domain.ConfigErrorf("no flow descriptor found for flow '%s' in %s", e.Flow, dir)
	}
	return t, nil
}

// FlowDetail enumerates the variant structure of the experiment flow. The
// first successful result is cached and returned on later calls.
func (e *Experiment) FlowDetail(t flow.Type) (domain.FlowVariantMap, error) {
	e.detailMu.Lock()
	defer e.detailMu.Unlock()

	if e.detail != nil {
		return *e.detail, nil
	}
	detail, err := flow.LoadDetail(e.FlowPath(), t)
	if err != nil {
		return domain.FlowVariantMap{}, err
	}
	e.detail = &detail
	return detail, nil
}

// Equal compares the declarative content of two experiments.
func (e *Experiment) Equal(other *Experiment) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.BasePath != other.BasePath || e.Name != other.Name || e.Flow != other.Flow || e.Runtime != other.Runtime {
		return false
	}
	if len(e.Datasets) != len(other.Datasets) || len(e.Evaluators) != len(other.Evaluators) || len(e.Connections) != len(other.Connections) {
		return false
	}
	for i := range e.Datasets {
		if !e.Datasets[i].Equal(other.Datasets[i]) {
			return false
		}
	}
	for i := range e.Evaluators {
		if !e.Evaluators[i].Equal(other.Evaluators[i]) {
			return false
		}
	}
	for i := range e.Connections {
		if !e.Connections[i].Equal(other.Connections[i]) {
			return false
		}
	}
	return true
}
