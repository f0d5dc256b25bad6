package experiment

import (
	"fmt"

	"github.com/animus-labs/flowlab/internal/domain"
)

func createEvaluators(raw []map[string]any, datasets map[string]domain.Dataset, basePath string) ([]domain.Evaluator, error) {
	evaluators := make([]domain.Evaluator, 0, len(raw))
	for _, entry := range raw {
		name := nameOf(entry)
		if err := requireKeys(entry, fmt.Sprintf("evaluator '%s' config missing", name), "name", "datasets"); err != nil {
			return nil, err
		}
		rawDatasets, err := asEntries(entry["datasets"], fmt.Sprintf("evaluator '%s' datasets", name))
		if err != nil {
			return nil, err
		}
		mapped, err := createEvalDatasetsAndDefaultMappings(rawDatasets, datasets)
		if err != nil {
			return nil, err
		}

		flowName := trimmed(entry["flow"])
		if flowName == "" {
			flowName = name
		}
		evaluators = append(evaluators, domain.Evaluator{
			Name:     name,
			Path:     resolveFlowDir(basePath, flowName),
			Datasets: mapped,
		})
	}
	return evaluators, nil
}
