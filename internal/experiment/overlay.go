package experiment

import "github.com/animus-labs/flowlab/internal/domain"

// applyOverlay replaces the collections named by the overlay. A key that is
// present replaces the base value wholesale and an empty or null value
// clears it; absent keys leave the base untouched. Overlay evaluators are
// checked against the overlay datasets when those were replaced.
func applyOverlay(exp *Experiment, datasets map[string]domain.Dataset, overlay map[string]any) error {
	if len(overlay) == 0 {
		return nil
	}

	if hasKey(overlay, "datasets") {
		raw, err := asEntries(overlay["datasets"], "datasets")
		if err != nil {
			return err
		}
		if len(raw) == 0 {
			exp.Datasets = []domain.MappedDataset{}
			datasets = map[string]domain.Dataset{}
		} else {
			byName, mapped, err := createDatasetsAndDefaultMappings(raw)
			if err != nil {
				return err
			}
			exp.Datasets = mapped
			datasets = byName
		}
	}

	if hasKey(overlay, "evaluators") {
		raw, err := asEntries(overlay["evaluators"], "evaluators")
		if err != nil {
			return err
		}
		evaluators, err := createEvaluators(raw, datasets, exp.BasePath)
		if err != nil {
			return err
		}
		exp.Evaluators = evaluators
	}

	if hasKey(overlay, "connections") {
		raw, err := asEntries(overlay["connections"], "connections")
		if err != nil {
			return err
		}
		connections, err := createConnections(raw)
		if err != nil {
			return err
		}
		exp.Connections = connections
	}

	if hasKey(overlay, "runtime") {
		exp.Runtime = trimmed(overlay["runtime"])
	}
	return nil
}
