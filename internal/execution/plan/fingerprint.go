package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/animus-labs/flowlab/internal/domain"
)

type fingerprintPayload struct {
	Experiment string            `json:"experiment"`
	FlowPath   string            `json:"flowPath"`
	BuildID    string            `json:"buildId"`
	Scores     string            `json:"scores,omitempty"`
	Run        plannedRunPayload `json:"run"`
}

// Fingerprint returns the hex sha256 identity of run within an experiment
// build. Map fields are serialized with sorted keys, so equal runs always
// share a fingerprint.
func Fingerprint(experiment, flowPath, buildID string, run domain.PlannedRun) (string, error) {
	return fingerprint(fingerprintPayload{
		Experiment: experiment,
		FlowPath:   flowPath,
		BuildID:    buildID,
		Run:        plannedRunPayloadFromDomain(run),
	})
}

// EvaluationFingerprint identifies an evaluation of the standard run named
// scores by the evaluator flow at evaluatorPath.
func EvaluationFingerprint(experiment, evaluatorPath, buildID, scores string, run domain.PlannedRun) (string, error) {
	return fingerprint(fingerprintPayload{
		Experiment: experiment,
		FlowPath:   evaluatorPath,
		BuildID:    buildID,
		Scores:     scores,
		Run:        plannedRunPayloadFromDomain(run),
	})
}

func fingerprint(payload fingerprintPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
