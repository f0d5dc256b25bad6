// Package flow detects flow kinds on disk and reads the variant structure
// of their descriptors.
package flow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/animus-labs/flowlab/internal/domain"
)

// Type is the kind of flow found in a flow directory.
type Type int

const (
	TypeNone Type = iota
	TypeDAG
	TypeCode
)

func (t Type) String() string {
	switch t {
	case TypeDAG:
		return "dag"
	case TypeCode:
		return "code"
	default:
		return "none"
	}
}

var (
	dagFilenames  = []string{"flow.dag.yaml", "flow.dag.yml"}
	codeFilenames = []string{"flow.flex.yaml", "flow.flex.yml"}
)

// HasDescriptor reports whether dir directly holds a DAG or code flow
// descriptor.
func HasDescriptor(dir string) bool {
	_, dag := findFile(dir, dagFilenames)
	_, code := findFile(dir, codeFilenames)
	return dag || code
}

// Detect inspects the top level of dir. A directory holding both a DAG and
// a code descriptor is ambiguous.
func Detect(dir string) (Type, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TypeNone, nil
		}
		return TypeNone, fmt.Errorf("stat flow dir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return TypeNone, domain.ConfigErrorf("flow path %s is not a directory", dir)
	}

	_, dag := findFile(dir, dagFilenames)
	_, code := findFile(dir, codeFilenames)
	switch {
	case dag && code:
		return TypeNone, domain.ConfigErrorf("flow dir %s holds both a dag and a flex descriptor", dir)
	case dag:
		return TypeDAG, nil
	case code:
		return TypeCode, nil
	default:
		return TypeNone, nil
	}
}

// LoadDetail reads the variant structure of the flow in flowPath.
func LoadDetail(flowPath string, t Type) (domain.FlowVariantMap, error) {
	switch t {
	case TypeDAG:
		path, ok := findFile(flowPath, dagFilenames)
		if !ok {
			return domain.FlowVariantMap{}, domain.ConfigErrorf("could not open flow file in path %s", filepath.Join(flowPath, dagFilenames[0]))
		}
		desc, err := readDAGDescriptor(path)
		if err != nil {
			return domain.FlowVariantMap{}, err
		}
		return variantMap(flowPath, desc)
	case TypeCode:
		path, ok := findFile(flowPath, codeFilenames)
		if !ok {
			return domain.FlowVariantMap{}, domain.ConfigErrorf("could not open flow file in path %s", filepath.Join(flowPath, codeFilenames[0]))
		}
		if _, err := readCodeEntry(path); err != nil {
			return domain.FlowVariantMap{}, err
		}
		return domain.FlowVariantMap{
			FlowPath:        flowPath,
			AllLLMNodes:     map[string]struct{}{},
			DefaultVariants: map[string]string{},
		}, nil
	default:
		return domain.FlowVariantMap{}, domain.ConfigErrorf("invalid flow type %s for %s", t, flowPath)
	}
}

func findFile(dir string, names []string) (string, bool) {
	for _, name := range names {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}
