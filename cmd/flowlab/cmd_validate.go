package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the experiment and check its flow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "experiment:  %s\n", exp.Name)
			fmt.Fprintf(out, "flow:        %s (%s)\n", exp.FlowPath(), flowType)
			fmt.Fprintf(out, "datasets:    %d\n", len(exp.Datasets))
			fmt.Fprintf(out, "evaluators:  %d\n", len(exp.Evaluators))
			fmt.Fprintf(out, "connections: %d\n", len(exp.Connections))
			if exp.Runtime != "" {
				fmt.Fprintf(out, "runtime:     %s\n", exp.Runtime)
			}
			if nodes := detail.LLMNodes(); len(nodes) > 0 {
				fmt.Fprintf(out, "llm nodes:   %s\n", strings.Join(nodes, ", "))
			}
			for _, group := range detail.AllVariants {
				fmt.Fprintf(out, "variants:    %s default=%s extra=%s\n", group.Node, detail.DefaultVariants[group.Node], strings.Join(group.Variants, ","))
			}
			opts.logger.Info("experiment valid", "experiment", exp.Name, "flow_type", flowType.String())
			return nil
		},
	}
}
