package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/animus-labs/flowlab/internal/datasets"
	"github.com/animus-labs/flowlab/internal/platform/auditlog"
)

func newDatasetsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Manage experiment datasets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "register",
		Short: "Upload local datasets whose content changed to the dataset registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exp, err := opts.loadExperiment()
			if err != nil {
				return err
			}
			registry, err := openRegistry(cmd.Context(), true)
			if err != nil {
				return err
			}
			st, err := openStores(cmd.Context(), opts.logger)
			if err != nil {
				return err
			}
			defer st.close()

			registrations, err := datasets.Register(cmd.Context(), registry, exp, opts.logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, reg := range registrations {
				fmt.Fprintf(out, "%s\t%s\t%s\n", reg.Dataset, reg.Version.Reference(), reg.Status)
				if reg.Status != datasets.StatusCreated {
					continue
				}
				if err := st.audit.Record(cmd.Context(), auditlog.Event{
					Actor:        actor(),
					Action:       auditlog.ActionDatasetRegistered,
					ResourceType: "dataset_version",
					ResourceID:   reg.Version.Reference(),
					Payload: map[string]any{
						"experiment": exp.Name,
						"hash":       reg.Version.Hash,
						"object":     reg.Version.Object,
					},
				}); err != nil {
					return fmt.Errorf("audit dataset %s: %w", reg.Dataset, err)
				}
			}
			return nil
		},
	})
	return cmd
}
