package runner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/animus-labs/flowlab/internal/domain"
	"github.com/animus-labs/flowlab/internal/execution/plan"
	"github.com/animus-labs/flowlab/internal/execution/submit"
	"github.com/animus-labs/flowlab/internal/execution/variants"
	"github.com/animus-labs/flowlab/internal/flow"
	"github.com/animus-labs/flowlab/internal/repo"
)

type datasetBatch struct {
	dataset string
	indexes []int
}

// Standard plans the experiment flow against every standard dataset and
// submits the runs. Datasets are submitted concurrently up to the
// configured parallelism; the runs of one dataset go out in plan order.
// Results follow plan order.
func (r *Runner) Standard(ctx context.Context, sel variants.Selector) ([]Result, error) {
	flowType, err := r.exp.DetectFlow()
	if err != nil {
		return nil, err
	}
	detail, err := r.exp.FlowDetail(flowType)
	if err != nil {
		return nil, err
	}
	if unmatched := sel.Unmatched(detail); len(unmatched) > 0 {
		r.logger.Warn("variant selection matches nothing", "experiment", r.exp.Name, "tokens", unmatched)
	}
	runs, err := plan.BuildRunPlan(r.exp.Datasets, detail, sel)
	if err != nil {
		return nil, err
	}

	flowPath := r.exp.FlowPath()
	env, err := r.environment(ctx)
	if err != nil {
		return nil, err
	}
	var initParams map[string]any
	if flowType == flow.TypeCode {
		if initParams, err = flow.LoadInit(flowPath, r.lookup); err != nil {
			return nil, err
		}
	}

	if r.exp.Runtime == "" {
		r.logger.Info("using automatic runtime", "experiment", r.exp.Name, "instance_type", DefaultInstanceType)
	} else {
		r.logger.Info("using runtime", "experiment", r.exp.Name, "runtime", r.exp.Runtime)
	}
	r.logger.Info("submitting runs", "experiment", r.exp.Name, "flow", flowPath, "runs", len(runs), "parallelism", r.parallelism)

	results := make([]Result, len(runs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, batch := range batchByDataset(runs) {
		batch := batch
		g.Go(func() error {
			for _, idx := range batch.indexes {
				res, err := r.submitStandard(gctx, runs[idx], flowPath, env, initParams)
				if err != nil {
					r.logger.Error("run submission failed", "experiment", r.exp.Name, "dataset", batch.dataset, "variant", runs[idx].Variant, "error", err)
					return err
				}
				results[idx] = res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) submitStandard(ctx context.Context, run domain.PlannedRun, flowPath string, env map[string]string, initParams map[string]any) (Result, error) {
	fingerprint, err := plan.Fingerprint(r.exp.Name, flowPath, r.buildID, run)
	if err != nil {
		return Result{}, fmt.Errorf("fingerprint run: %w", err)
	}
	if rec, ok, err := r.lookupExisting(ctx, fingerprint); err != nil {
		return Result{}, err
	} else if ok {
		r.metrics.skipped(repo.KindStandard)
		r.logger.Info("run already submitted", "experiment", r.exp.Name, "dataset", run.Dataset.Name, "variant", run.Variant, "run", rec.RunName)
		return existingResult(rec), nil
	}

	dataRef, err := r.resolver.Resolve(ctx, run.Dataset)
	if err != nil {
		return Result{}, err
	}
	payload, err := runPayload(run)
	if err != nil {
		return Result{}, err
	}

	label := run.VariantID
	if run.IsDefault() {
		label = "default"
	}
	sub := submit.Submission{
		Name:                 fmt.Sprintf("%s_%s_%s_%s", r.exp.Name, label, run.Dataset.Name, r.newID()),
		Experiment:           r.exp.Name,
		Fingerprint:          fingerprint,
		FlowPath:             flowPath,
		Dataset:              run.Dataset.Name,
		DataReference:        dataRef,
		Variant:              run.Variant,
		ColumnMapping:        run.ColumnMapping,
		EnvironmentVariables: env,
		Tags:                 r.tags(nil),
		Runtime:              r.exp.Runtime,
		Resources:            r.resources(),
		Init:                 initParams,
	}
	res, err := r.submit(ctx, repo.KindStandard, sub, payload)
	if err != nil {
		return Result{}, err
	}
	r.logger.Info("run submitted", "experiment", r.exp.Name, "dataset", res.Dataset, "variant", res.Variant, "run", res.Name, "status", res.Status)
	return res, nil
}

// batchByDataset groups plan indexes by dataset name in first-seen order.
func batchByDataset(runs []domain.PlannedRun) []datasetBatch {
	var batches []datasetBatch
	pos := map[string]int{}
	for i, run := range runs {
		name := run.Dataset.Name
		j, ok := pos[name]
		if !ok {
			j = len(batches)
			pos[name] = j
			batches = append(batches, datasetBatch{dataset: name})
		}
		batches[j].indexes = append(batches[j].indexes, i)
	}
	return batches
}
