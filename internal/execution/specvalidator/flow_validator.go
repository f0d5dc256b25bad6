package specvalidator

import (
	"strings"

	"github.com/animus-labs/flowlab/internal/domain"
)

// ValidateFlowDescriptor checks the node and variant declarations of a DAG
// flow.
func ValidateFlowDescriptor(desc domain.FlowDescriptor) error {
	issues := &ValidationError{Subject: "flow"}

	nodeNames := make(map[string]struct{}, len(desc.Nodes))
	for i, node := range desc.Nodes {
		name := strings.TrimSpace(node.Name)
		if name == "" {
			issues.Addf("nodes[%d] name is required", i)
			continue
		}
		if _, exists := nodeNames[name]; exists {
			issues.Addf("duplicate node name %q", name)
		}
		nodeNames[name] = struct{}{}
	}

	for _, nv := range desc.NodeVariants {
		node := strings.TrimSpace(nv.Node)
		if node == "" {
			issues.Add("node_variants entry with empty node name")
			continue
		}
		if strings.TrimSpace(nv.DefaultVariant) == "" {
			issues.Addf("node_variants[%s] default_variant_id is required", node)
		}
		if len(nv.Variants) == 0 {
			issues.Addf("node_variants[%s] variants must not be empty", node)
			continue
		}
		seen := make(map[string]struct{}, len(nv.Variants))
		for _, variant := range nv.Variants {
			if strings.TrimSpace(variant) == "" {
				issues.Addf("node_variants[%s] contains an empty variant id", node)
				continue
			}
			if _, exists := seen[variant]; exists {
				issues.Addf("node_variants[%s] duplicate variant %q", node, variant)
			}
			seen[variant] = struct{}{}
		}
		if nv.DefaultVariant != "" {
			if _, ok := seen[nv.DefaultVariant]; !ok {
				issues.Addf("node_variants[%s] default variant %q is not declared", node, nv.DefaultVariant)
			}
		}
	}

	return issues.OrNil()
}
