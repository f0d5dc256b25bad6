package experiment

import (
	"fmt"

	"github.com/animus-labs/flowlab/internal/domain"
)

// createDatasetsAndDefaultMappings builds the standard datasets. The
// returned map is keyed by name with later entries winning; the list keeps
// every entry in declaration order.
func createDatasetsAndDefaultMappings(raw []map[string]any) (map[string]domain.Dataset, []domain.MappedDataset, error) {
	byName := make(map[string]domain.Dataset, len(raw))
	mapped := make([]domain.MappedDataset, 0, len(raw))
	for _, entry := range raw {
		name := nameOf(entry)
		if err := requireKeys(entry, fmt.Sprintf("dataset '%s' config missing parameter", name), "name", "source", "mappings"); err != nil {
			return nil, nil, err
		}
		if err := forbidKeys(entry, fmt.Sprintf("unexpected parameter found in dataset '%s' description", name), "reference"); err != nil {
			return nil, nil, err
		}

		source := trimmed(entry["source"])
		if source == "" {
			return nil, nil, domain.ConfigErrorf("dataset '%s' source must not be empty", name)
		}
		ds, err := domain.NewDataset(name, source, stringValue(entry["description"]), "")
		if err != nil {
			return nil, nil, err
		}
		mappings, err := stringMap(entry["mappings"], fmt.Sprintf("dataset '%s' mappings", name))
		if err != nil {
			return nil, nil, err
		}
		byName[ds.Name] = ds
		mapped = append(mapped, ds.WithMappings(mappings))
	}
	return byName, mapped, nil
}

// createEvalDatasetsAndDefaultMappings builds the datasets of one evaluator.
// An entry either reuses a standard dataset by name or declares a new
// dataset that references one.
func createEvalDatasetsAndDefaultMappings(raw []map[string]any, existing map[string]domain.Dataset) ([]domain.MappedDataset, error) {
	mapped := make([]domain.MappedDataset, 0, len(raw))
	for _, entry := range raw {
		name := nameOf(entry)
		if err := requireKeys(entry, fmt.Sprintf("dataset '%s' config missing parameter", name), "name", "mappings"); err != nil {
			return nil, err
		}

		var ds domain.Dataset
		if standard, ok := existing[name]; ok {
			if err := forbidKeys(entry, fmt.Sprintf("dataset '%s' config doesn't support parameter", name), "source", "reference"); err != nil {
				return nil, err
			}
			ds = standard
		} else {
			if err := requireKeys(entry, fmt.Sprintf("dataset '%s' config missing parameter", name), "source", "reference"); err != nil {
				return nil, err
			}
			source := trimmed(entry["source"])
			if source == "" {
				return nil, domain.ConfigErrorf("dataset '%s' source must not be empty", name)
			}
			reference := trimmed(entry["reference"])
			created, err := domain.NewDataset(name, source, stringValue(entry["description"]), reference)
			if err != nil {
				return nil, err
			}
			if _, ok := existing[reference]; !ok {
				return nil, domain.ConfigErrorf("referenced dataset '%s' not defined", reference)
			}
			ds = created
		}

		mappings, err := stringMap(entry["mappings"], fmt.Sprintf("dataset '%s' mappings", name))
		if err != nil {
			return nil, err
		}
		mapped = append(mapped, ds.WithMappings(mappings))
	}
	return mapped, nil
}
