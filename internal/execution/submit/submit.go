// Package submit defines how planned runs are handed to a run service.
package submit

import (
	"context"

	"github.com/animus-labs/flowlab/internal/domain"
	"github.com/animus-labs/flowlab/internal/execution/specvalidator"
)

// Run statuses reported by submitters.
const (
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
	StatusRunning   = "Running"
)

// Submission is one flow run request. Run names the standard run an
// evaluation run scores; it is empty for standard runs.
type Submission struct {
	Name                 string            `validate:"required"`
	Experiment           string            `validate:"required"`
	Fingerprint          string            `validate:"required,len=64,hexadecimal"`
	FlowPath             string            `validate:"required"`
	Dataset              string            `validate:"required"`
	DataReference        string            `validate:"required"`
	Variant              string            `validate:"omitempty,startswith=${,endswith=}"`
	ColumnMapping        map[string]string `validate:"omitempty,dive,keys,required,endkeys,required"`
	EnvironmentVariables map[string]string `validate:"omitempty,dive,keys,required,endkeys,required"`
	Tags                 map[string]string
	Runtime              string
	Resources            map[string]string
	Init                 map[string]any
	Run                  string
}

// IsEvaluation reports whether the submission scores a previous run.
func (s Submission) IsEvaluation() bool {
	return s.Run != ""
}

func (s Submission) Validate() error {
	return specvalidator.ValidateStruct("submission", s)
}

// Handle identifies a submitted run. Existing is set when the run service
// already knew the submission.
type Handle struct {
	Name     string
	Status   string
	Existing bool
}

// Submitter hands runs to a run service.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (Handle, error)
}

// ConnectionProvisioner is implemented by submitters that can create
// service connections before runs are submitted.
type ConnectionProvisioner interface {
	EnsureConnection(ctx context.Context, conn domain.Connection) error
}
