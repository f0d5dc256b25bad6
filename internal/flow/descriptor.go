package flow

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/animus-labs/flowlab/internal/domain"
	"github.com/animus-labs/flowlab/internal/execution/specvalidator"
)

type dagPayload struct {
	Nodes        []nodePayload `yaml:"nodes"`
	NodeVariants yaml.Node     `yaml:"node_variants"`
}

type nodePayload struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type nodeVariantsPayload struct {
	DefaultVariantID string    `yaml:"default_variant_id"`
	Variants         yaml.Node `yaml:"variants"`
}

type codePayload struct {
	Entry string `yaml:"entry"`
}

func readDAGDescriptor(path string) (domain.FlowDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.FlowDescriptor{}, fmt.Errorf("read flow descriptor: %w", err)
	}
	var payload dagPayload
	if err := yaml.Unmarshal(raw, &payload); err != nil {
		return domain.FlowDescriptor{}, domain.ConfigErrorf("parse flow descriptor %s: %v", path, err)
	}

	desc := domain.FlowDescriptor{
		Nodes: make([]domain.FlowNode, 0, len(payload.Nodes)),
	}
	for _, node := range payload.Nodes {
		desc.Nodes = append(desc.Nodes, domain.FlowNode{Name: node.Name, Type: node.Type})
	}

	variants, err := decodeNodeVariants(&payload.NodeVariants)
	if err != nil {
		return domain.FlowDescriptor{}, domain.ConfigErrorf("parse node_variants in %s: %v", path, err)
	}
	desc.NodeVariants = variants
	return desc, nil
}

// decodeNodeVariants walks the node_variants mapping keeping declaration
// order of nodes and of their variants.
func decodeNodeVariants(node *yaml.Node) ([]domain.FlowNodeVariants, error) {
	if node.Kind == 0 || isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping, got %s", kindName(node))
	}

	out := make([]domain.FlowNodeVariants, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var payload nodeVariantsPayload
		if err := node.Content[i+1].Decode(&payload); err != nil {
			return nil, fmt.Errorf("node %s: %w", name, err)
		}
		ids, err := mappingKeys(&payload.Variants)
		if err != nil {
			return nil, fmt.Errorf("node %s variants: %w", name, err)
		}
		out = append(out, domain.FlowNodeVariants{
			Node:           name,
			DefaultVariant: payload.DefaultVariantID,
			Variants:       ids,
		})
	}
	return out, nil
}

func mappingKeys(node *yaml.Node) ([]string, error) {
	if node.Kind == 0 || isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping, got %s", kindName(node))
	}
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys, nil
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

func kindName(node *yaml.Node) string {
	switch node.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

// variantMap validates desc and renders it as a FlowVariantMap. Default
// variants are recorded in DefaultVariants and left out of AllVariants.
func variantMap(flowPath string, desc domain.FlowDescriptor) (domain.FlowVariantMap, error) {
	if err := specvalidator.ValidateFlowDescriptor(desc); err != nil {
		return domain.FlowVariantMap{}, err
	}

	out := domain.FlowVariantMap{
		FlowPath:        flowPath,
		AllLLMNodes:     map[string]struct{}{},
		DefaultVariants: make(map[string]string, len(desc.NodeVariants)),
	}
	for _, nv := range desc.NodeVariants {
		out.DefaultVariants[nv.Node] = nv.DefaultVariant
		out.AllLLMNodes[nv.Node] = struct{}{}

		others := make([]string, 0, len(nv.Variants))
		for _, variant := range nv.Variants {
			if variant != nv.DefaultVariant {
				others = append(others, variant)
			}
		}
		if len(others) == 0 {
			continue
		}
		out.AllVariants = append(out.AllVariants, domain.VariantGroup{Node: nv.Node, Variants: others})
	}
	for _, node := range desc.Nodes {
		if node.Type == domain.FlowNodeTypeLLM {
			out.AllLLMNodes[node.Name] = struct{}{}
		}
	}
	return out, nil
}

func readCodeEntry(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read flow descriptor: %w", err)
	}
	var payload codePayload
	if err := yaml.Unmarshal(raw, &payload); err != nil {
		return "", domain.ConfigErrorf("parse flow descriptor %s: %v", path, err)
	}
	module, fn, ok := strings.Cut(strings.TrimSpace(payload.Entry), ":")
	if !ok || module == "" || fn == "" {
		return "", domain.ConfigErrorf("flow descriptor %s entry must be module:function, got %q", path, payload.Entry)
	}
	return payload.Entry, nil
}
