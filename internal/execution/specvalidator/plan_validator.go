package specvalidator

import (
	"strings"

	"github.com/animus-labs/flowlab/internal/domain"
)

// ValidateRunPlan checks that planned runs are complete and that no two
// runs share an assignment on the same dataset.
func ValidateRunPlan(runs []domain.PlannedRun) error {
	issues := &ValidationError{Subject: "run plan"}

	seen := make(map[string]struct{}, len(runs))
	for i, run := range runs {
		if strings.TrimSpace(run.Dataset.Name) == "" {
			issues.Addf("run[%d] dataset name is required", i)
		}
		if strings.TrimSpace(run.Dataset.Source) == "" {
			issues.Addf("run[%d] dataset source is required", i)
		}
		if run.Variant != "" {
			if run.Node == "" || run.VariantID == "" {
				issues.Addf("run[%d] variant %s must name node and variant", i, run.Variant)
			} else if run.Variant != domain.VariantString(run.Node, run.VariantID) {
				issues.Addf("run[%d] variant %s does not match %s.%s", i, run.Variant, run.Node, run.VariantID)
			}
			if run.Assignment[run.Node] != run.VariantID {
				issues.Addf("run[%d] assignment does not select %s for %s", i, run.VariantID, run.Node)
			}
		}
		key := run.Key()
		if run.IsDefault() {
			// default runs are emitted per mapped dataset
			continue
		}
		if _, exists := seen[key]; exists {
			issues.Addf("run[%d] duplicates assignment %s", i, key)
		}
		seen[key] = struct{}{}
	}

	return issues.OrNil()
}
