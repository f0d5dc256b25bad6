package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/animus-labs/flowlab/internal/domain"
	"github.com/animus-labs/flowlab/internal/execution/plan"
	"github.com/animus-labs/flowlab/internal/execution/submit"
	"github.com/animus-labs/flowlab/internal/flow"
	"github.com/animus-labs/flowlab/internal/repo"
)

// Evaluate scores the named standard runs with every evaluator of the
// experiment. A run is evaluated with each evaluator dataset that
// references the run's dataset; evaluators with no such dataset are
// skipped for that run. Failed runs are not evaluated.
func (r *Runner) Evaluate(ctx context.Context, runNames []string) ([]Result, error) {
	if len(r.exp.Evaluators) == 0 {
		r.logger.Info("experiment has no evaluators", "experiment", r.exp.Name)
		return nil, nil
	}

	flowType, err := r.exp.DetectFlow()
	if err != nil {
		return nil, err
	}
	detail, err := r.exp.FlowDetail(flowType)
	if err != nil {
		return nil, err
	}

	standard, err := r.ledger.List(ctx, repo.SubmissionFilter{Experiment: r.exp.Name, Kind: repo.KindStandard})
	if err != nil {
		return nil, fmt.Errorf("list standard runs: %w", err)
	}
	byName := make(map[string]repo.SubmissionRecord, len(standard))
	for _, rec := range standard {
		byName[rec.RunName] = rec
	}
	scored := make([]repo.SubmissionRecord, 0, len(runNames))
	for _, name := range runNames {
		rec, ok := byName[name]
		if !ok {
			return nil, domain.ConfigErrorf("run %s not found for experiment %s", name, r.exp.Name)
		}
		scored = append(scored, rec)
	}

	env, err := r.environment(ctx)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, evaluator := range r.exp.Evaluators {
		evalType, err := flow.Detect(evaluator.Path)
		if err != nil {
			return nil, err
		}
		if evalType == flow.TypeNone {
			return nil, domain.ConfigErrorf("evaluator '%s' has no flow descriptor in %s", evaluator.Name, evaluator.Path)
		}
		var initParams map[string]any
		if evalType == flow.TypeCode {
			if initParams, err = flow.LoadInit(evaluator.Path, r.lookup); err != nil {
				return nil, err
			}
		}

		executed := false
		for _, rec := range scored {
			if rec.Status == submit.StatusFailed {
				r.logger.Warn("skipping failed run", "experiment", r.exp.Name, "evaluator", evaluator.Name, "run", rec.RunName)
				continue
			}
			matches := evaluator.FindDatasetWithReference(rec.Dataset)
			if len(matches) == 0 {
				continue
			}
			assignment := assignmentFor(rec.Variant, detail.DefaultVariants)
			for _, mapped := range matches {
				res, err := r.submitEvaluation(ctx, evaluator, mapped, rec, assignment, env, initParams)
				if err != nil {
					r.logger.Error("evaluation submission failed", "experiment", r.exp.Name, "evaluator", evaluator.Name, "run", rec.RunName, "error", err)
					return nil, err
				}
				executed = true
				results = append(results, res)
			}
		}
		if !executed {
			r.logger.Info("evaluator matched no run", "experiment", r.exp.Name, "evaluator", evaluator.Name)
		}
	}
	return results, nil
}

func (r *Runner) submitEvaluation(ctx context.Context, evaluator domain.Evaluator, mapped domain.MappedDataset, scored repo.SubmissionRecord, assignment map[string]string, env map[string]string, initParams map[string]any) (Result, error) {
	run := domain.PlannedRun{
		Dataset:       mapped.Dataset,
		ColumnMapping: mapped.Mappings,
		Assignment:    assignment,
	}
	fingerprint, err := plan.EvaluationFingerprint(r.exp.Name, evaluator.Path, r.buildID, scored.RunName, run)
	if err != nil {
		return Result{}, fmt.Errorf("fingerprint evaluation: %w", err)
	}
	if rec, ok, err := r.lookupExisting(ctx, fingerprint); err != nil {
		return Result{}, err
	} else if ok {
		r.metrics.skipped(repo.KindEvaluation)
		r.logger.Info("evaluation already submitted", "experiment", r.exp.Name, "evaluator", evaluator.Name, "run", rec.RunName)
		return existingResult(rec), nil
	}

	dataRef, err := r.resolver.Resolve(ctx, mapped.Dataset)
	if err != nil {
		return Result{}, err
	}
	payload, err := runPayload(run)
	if err != nil {
		return Result{}, err
	}

	extra := make(map[string]string, len(assignment)+2)
	for node, variant := range assignment {
		extra[node] = variant
	}
	extra["evaluator"] = evaluator.Name
	extra["dataset"] = scored.Dataset

	sub := submit.Submission{
		Name:                 fmt.Sprintf("%s_eval_%s_%s_%s", r.exp.Name, evaluator.Name, mapped.Dataset.Name, r.newID()),
		Experiment:           r.exp.Name,
		Fingerprint:          fingerprint,
		FlowPath:             evaluator.Path,
		Dataset:              mapped.Dataset.Name,
		DataReference:        dataRef,
		ColumnMapping:        mapped.Mappings,
		EnvironmentVariables: env,
		Tags:                 r.tags(extra),
		Runtime:              r.exp.Runtime,
		Resources:            r.resources(),
		Init:                 initParams,
		Run:                  scored.RunName,
	}
	res, err := r.submit(ctx, repo.KindEvaluation, sub, payload)
	if err != nil {
		return Result{}, err
	}
	r.logger.Info("evaluation submitted", "experiment", r.exp.Name, "evaluator", evaluator.Name, "run", scored.RunName, "evaluation", res.Name, "status", res.Status)
	return res, nil
}

// assignmentFor expands a "${node.variant}" selector into the full
// node to variant assignment, starting from the defaults.
func assignmentFor(variant string, defaults map[string]string) map[string]string {
	out := make(map[string]string, len(defaults))
	for node, v := range defaults {
		out[node] = v
	}
	inner, ok := strings.CutPrefix(variant, "${")
	if !ok {
		return out
	}
	inner, ok = strings.CutSuffix(inner, "}")
	if !ok {
		return out
	}
	if node, id, ok := strings.Cut(inner, "."); ok && node != "" && id != "" {
		out[node] = id
	}
	return out
}
