package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/animus-labs/flowlab/internal/domain"
	"github.com/animus-labs/flowlab/internal/execution/specvalidator"
	"github.com/animus-labs/flowlab/internal/experiment"
	"github.com/animus-labs/flowlab/internal/platform/env"
	"github.com/animus-labs/flowlab/internal/platform/logging"
)

type options struct {
	basePath  string
	file      string
	env       string
	buildID   string
	logLevel  string
	logFormat string

	logger *slog.Logger
}

func (o *options) loadExperiment() (*experiment.Experiment, error) {
	return experiment.LoadExperiment(o.file, o.basePath, o.env)
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "flowlab",
		Short:         "Plan and submit prompt flow experiments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logger, err := logging.New(opts.logLevel, opts.logFormat, stderr)
			if err != nil {
				return domain.ConfigErrorf("%s", err.Error())
			}
			opts.logger = logger
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.basePath, "base-path", env.String("FLOWLAB_BASE_PATH", "."), "directory holding the experiment file and flows")
	flags.StringVar(&opts.file, "file", env.String("FLOWLAB_EXPERIMENT_FILE", experiment.DefaultFilename), "experiment file name, relative to the base path")
	flags.StringVar(&opts.env, "env", env.String("FLOWLAB_ENV_NAME", ""), "environment overlay to apply (e.g. dev, prod)")
	flags.StringVar(&opts.buildID, "build-id", env.String("FLOWLAB_BUILD_ID", ""), "build identifier tagged on every run")
	flags.StringVar(&opts.logLevel, "log-level", env.String("FLOWLAB_LOG_LEVEL", "info"), "debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", env.String("FLOWLAB_LOG_FORMAT", "json"), "json or text")

	root.AddCommand(
		newValidateCmd(opts),
		newPlanCmd(opts),
		newRunCmd(opts),
		newEvaluateCmd(opts),
		newDatasetsCmd(opts),
	)
	return root
}

func execute(ctx context.Context, args []string) int {
	root := newRootCmd(os.Stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	return exitCode(err)
}

// exitCode maps configuration problems to 2 and everything else to 1.
func exitCode(err error) int {
	var cfgErr *domain.ConfigError
	var valErr *specvalidator.ValidationError
	if errors.As(err, &cfgErr) || errors.As(err, &valErr) {
		return 2
	}
	return 1
}
