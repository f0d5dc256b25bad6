package domain

import "sort"

// FlowNodeTypeLLM marks nodes that call a language model.
const FlowNodeTypeLLM = "llm"

// FlowDescriptor is the subset of a DAG flow descriptor the planner reads.
type FlowDescriptor struct {
	Nodes        []FlowNode
	NodeVariants []FlowNodeVariants
}

type FlowNode struct {
	Name string
	Type string
}

// FlowNodeVariants lists the variants declared for one node, in
// declaration order.
type FlowNodeVariants struct {
	Node           string
	DefaultVariant string
	Variants       []string
}

// VariantGroup is one node and its non-default variant ids in declaration
// order.
type VariantGroup struct {
	Node     string
	Variants []string
}

// VariantPair is a single (node, variant) candidate.
type VariantPair struct {
	Node    string
	Variant string
}

// FlowVariantMap describes the variant structure of a flow.
type FlowVariantMap struct {
	FlowPath        string
	AllVariants     []VariantGroup
	AllLLMNodes     map[string]struct{}
	DefaultVariants map[string]string
}

// Pairs flattens AllVariants in iteration order.
func (f FlowVariantMap) Pairs() []VariantPair {
	var out []VariantPair
	for _, group := range f.AllVariants {
		for _, variant := range group.Variants {
			out = append(out, VariantPair{Node: group.Node, Variant: variant})
		}
	}
	return out
}

func (f FlowVariantMap) HasVariants() bool {
	for _, group := range f.AllVariants {
		if len(group.Variants) > 0 {
			return true
		}
	}
	return false
}

// LLMNodes returns the LLM node names sorted.
func (f FlowVariantMap) LLMNodes() []string {
	out := make([]string, 0, len(f.AllLLMNodes))
	for name := range f.AllLLMNodes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
