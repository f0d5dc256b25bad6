package plan

import (
	"encoding/json"

	"github.com/animus-labs/flowlab/internal/domain"
)

// MarshalRunPlan serializes planned runs with stable field names.
func MarshalRunPlan(runs []domain.PlannedRun) ([]byte, error) {
	payload := runPlanPayload{Runs: make([]plannedRunPayload, 0, len(runs))}
	for _, run := range runs {
		payload.Runs = append(payload.Runs, plannedRunPayloadFromDomain(run))
	}
	return json.Marshal(payload)
}

// UnmarshalRunPlan parses a serialized plan.
func UnmarshalRunPlan(raw []byte) ([]domain.PlannedRun, error) {
	var payload runPlanPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	runs := make([]domain.PlannedRun, 0, len(payload.Runs))
	for _, run := range payload.Runs {
		runs = append(runs, domain.PlannedRun{
			Dataset: domain.Dataset{
				Name:        run.Dataset.Name,
				Source:      run.Dataset.Source,
				Description: run.Dataset.Description,
				Reference:   run.Dataset.Reference,
			},
			ColumnMapping: nonNilMap(run.ColumnMapping),
			Node:          run.Node,
			VariantID:     run.VariantID,
			Variant:       run.Variant,
			Assignment:    nonNilMap(run.Assignment),
		})
	}
	return runs, nil
}

type runPlanPayload struct {
	Runs []plannedRunPayload `json:"runs"`
}

type plannedRunPayload struct {
	Dataset       datasetPayload    `json:"dataset"`
	ColumnMapping map[string]string `json:"columnMapping"`
	Node          string            `json:"node,omitempty"`
	VariantID     string            `json:"variantId,omitempty"`
	Variant       string            `json:"variant,omitempty"`
	Assignment    map[string]string `json:"assignment"`
}

type datasetPayload struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Description string `json:"description,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

func plannedRunPayloadFromDomain(run domain.PlannedRun) plannedRunPayload {
	return plannedRunPayload{
		Dataset: datasetPayload{
			Name:        run.Dataset.Name,
			Source:      run.Dataset.Source,
			Description: run.Dataset.Description,
			Reference:   run.Dataset.Reference,
		},
		ColumnMapping: nonNilMap(run.ColumnMapping),
		Node:          run.Node,
		VariantID:     run.VariantID,
		Variant:       run.Variant,
		Assignment:    nonNilMap(run.Assignment),
	}
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
