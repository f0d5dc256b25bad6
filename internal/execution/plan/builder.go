package plan

import (
	"maps"

	"github.com/animus-labs/flowlab/internal/domain"
	"github.com/animus-labs/flowlab/internal/execution/specvalidator"
	"github.com/animus-labs/flowlab/internal/execution/variants"
)

// BuildRunPlan enumerates the runs for every mapped dataset in declaration
// order. Each run changes one node away from its default variant; a flow
// without variants, or a defaults-only selector, yields one default run per
// dataset. Assignments already planned for a dataset are skipped.
func BuildRunPlan(datasets []domain.MappedDataset, detail domain.FlowVariantMap, sel variants.Selector) ([]domain.PlannedRun, error) {
	runs := make([]domain.PlannedRun, 0, len(datasets))
	seen := make(map[string]struct{})

	for _, mapped := range datasets {
		if sel.DefaultsOnly() || !detail.HasVariants() {
			runs = append(runs, domain.PlannedRun{
				Dataset:       mapped.Dataset,
				ColumnMapping: maps.Clone(mapped.Mappings),
				Assignment:    cloneDefaults(detail.DefaultVariants),
			})
			continue
		}

		for _, pair := range detail.Pairs() {
			if !sel.Enabled(pair.Node, pair.Variant) {
				continue
			}
			assignment := cloneDefaults(detail.DefaultVariants)
			assignment[pair.Node] = pair.Variant

			key := domain.AssignmentKey(assignment, mapped.Dataset.Name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			runs = append(runs, domain.PlannedRun{
				Dataset:       mapped.Dataset,
				ColumnMapping: maps.Clone(mapped.Mappings),
				Node:          pair.Node,
				VariantID:     pair.Variant,
				Variant:       domain.VariantString(pair.Node, pair.Variant),
				Assignment:    assignment,
			})
		}
	}

	if err := specvalidator.ValidateRunPlan(runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func cloneDefaults(defaults map[string]string) map[string]string {
	out := make(map[string]string, len(defaults)+1)
	maps.Copy(out, defaults)
	return out
}
