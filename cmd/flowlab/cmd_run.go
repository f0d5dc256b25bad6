package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/animus-labs/flowlab/internal/datasets"
	"github.com/animus-labs/flowlab/internal/execution/variants"
	"github.com/animus-labs/flowlab/internal/runner"
)

var errNoRuns = errors.New("no runs to evaluate")

type runFlags struct {
	submitter   string
	failureRate float64
	parallelism int
	metricsFile string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.submitter, "submitter", "dryrun", "dryrun or http")
	cmd.Flags().Float64Var(&f.failureRate, "dryrun-failure-rate", 0, "share of dry-run submissions reported as failed")
	cmd.Flags().IntVar(&f.parallelism, "parallelism", 1, "datasets submitted concurrently")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "write run metrics in textfile format to this path")
}

func newRunCmd(opts *options) *cobra.Command {
	var (
		flags      runFlags
		selection  string
		outputFile string
		evaluate   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit the planned runs of the experiment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, cleanup, err := newRunner(cmd, opts, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			results, err := r.Standard(cmd.Context(), variants.Parse(selection))
			if err != nil {
				return err
			}
			printResults(cmd.OutOrStdout(), results)
			if outputFile != "" {
				if err := runner.WriteRunIDs(outputFile, results); err != nil {
					return err
				}
			}

			if evaluate {
				names := make([]string, 0, len(results))
				for _, res := range results {
					names = append(names, res.Name)
				}
				evals, err := r.Evaluate(cmd.Context(), names)
				if err != nil {
					return err
				}
				printResults(cmd.OutOrStdout(), evals)
			}
			return writeMetrics(r, flags.metricsFile)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&selection, "variants", "*", `variants to run: "*"/"all", "defaults", or a comma separated list`)
	cmd.Flags().StringVar(&outputFile, "output-file", "", "write the submitted run names to this file")
	cmd.Flags().BoolVar(&evaluate, "evaluate", false, "evaluate the runs once they are submitted")
	return cmd
}

func newEvaluateCmd(opts *options) *cobra.Command {
	var (
		flags runFlags
		runs  string
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate submitted runs with the experiment evaluators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := runner.ReadRunIDs(runs)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				return errNoRuns
			}
			r, cleanup, err := newRunner(cmd, opts, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			results, err := r.Evaluate(cmd.Context(), names)
			if err != nil {
				return err
			}
			printResults(cmd.OutOrStdout(), results)
			return writeMetrics(r, flags.metricsFile)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&runs, "runs", "", "run names: a file written by run --output-file, a JSON array or a comma separated list")
	_ = cmd.MarkFlagRequired("runs")
	return cmd
}

func newRunner(cmd *cobra.Command, opts *options, flags runFlags) (*runner.Runner, func(), error) {
	ctx := cmd.Context()
	exp, err := opts.loadExperiment()
	if err != nil {
		return nil, nil, err
	}
	st, err := openStores(ctx, opts.logger)
	if err != nil {
		return nil, nil, err
	}
	registry, err := openRegistry(ctx, false)
	if err != nil {
		st.close()
		return nil, nil, err
	}
	submitter, err := newSubmitter(ctx, flags.submitter, flags.failureRate, st.ledger)
	if err != nil {
		st.close()
		return nil, nil, err
	}
	r, err := runner.New(exp, submitter, datasets.NewResolver(registry, exp.BasePath), st.ledger,
		runner.WithLogger(opts.logger),
		runner.WithBuildID(opts.buildID),
		runner.WithParallelism(flags.parallelism),
		runner.WithAudit(st.audit, actor()),
	)
	if err != nil {
		st.close()
		return nil, nil, err
	}
	return r, st.close, nil
}

func writeMetrics(r *runner.Runner, path string) error {
	if path == "" {
		return nil
	}
	if err := r.Metrics().WriteFile(path); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func printResults(w io.Writer, results []runner.Result) {
	for _, res := range results {
		state := "submitted"
		if res.Existing {
			state = "existing"
		}
		variant := res.Variant
		if variant == "" {
			variant = "default"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", res.Kind, res.Name, res.Dataset, variant, res.Status, state)
	}
}
