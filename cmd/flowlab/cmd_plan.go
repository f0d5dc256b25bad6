package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/animus-labs/flowlab/internal/execution/plan"
	"github.com/animus-labs/flowlab/internal/execution/variants"
)

const watchDebounce = 250 * time.Millisecond

func newPlanCmd(opts *options) *cobra.Command {
	var (
		selection string
		output    string
		watch     bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the runs the experiment would submit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel := variants.Parse(selection)
			if err := writePlan(opts, sel, output, cmd.OutOrStdout()); err != nil {
				if !watch {
					return err
				}
				opts.logger.Error("plan failed", "error", err)
			}
			if !watch {
				return nil
			}
			return watchPlan(cmd.Context(), opts, func() {
				if err := writePlan(opts, sel, output, cmd.OutOrStdout()); err != nil {
					opts.logger.Error("plan failed", "error", err)
				}
			})
		},
	}
	cmd.Flags().StringVar(&selection, "variants", "*", `variants to plan: "*"/"all", "defaults", or a comma separated list of variant or node.variant`)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the plan JSON to this file instead of stdout")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-plan whenever the experiment or flow files change")
	return cmd
}

func writePlan(opts *options, sel variants.Selector, output string, stdout io.Writer) error {
	exp, err := opts.loadExperiment()
	if err != nil {
		return err
	}
	flowType, err := exp.DetectFlow()
	if err != nil {
		return err
	}
	detail, err := exp.FlowDetail(flowType)
	if err != nil {
		return err
	}
	if unmatched := sel.Unmatched(detail); len(unmatched) > 0 {
		opts.logger.Warn("variant selection matches nothing", "experiment", exp.Name, "tokens", unmatched)
	}
	runs, err := plan.BuildRunPlan(exp.Datasets, detail, sel)
	if err != nil {
		return err
	}
	raw, err := plan.MarshalRunPlan(runs)
	if err != nil {
		return err
	}
	opts.logger.Info("plan built", "experiment", exp.Name, "selection", sel.String(), "runs", len(runs))
	if output == "" {
		_, err = fmt.Fprintln(stdout, string(raw))
		return err
	}
	if err := os.WriteFile(output, raw, 0o644); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return nil
}

// watchPlan calls replan after bursts of changes to experiment, overlay or
// flow files until ctx is done.
func watchPlan(ctx context.Context, opts *options, replan func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dirs := []string{opts.basePath, filepath.Join(opts.basePath, "flows"), filepath.Join(opts.basePath, "environment")}
	if exp, err := opts.loadExperiment(); err == nil {
		if _, err := exp.DetectFlow(); err == nil {
			dirs = append(dirs, exp.FlowPath())
		}
	}
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			opts.logger.Warn("failed to watch directory", "path", dir, "error", err)
		}
	}
	opts.logger.Info("watching for changes", "paths", watcher.WatchList())

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			opts.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			debounce = time.After(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			opts.logger.Warn("watcher error", "error", err)
		case <-debounce:
			debounce = nil
			replan()
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	switch strings.ToLower(filepath.Ext(event.Name)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}
