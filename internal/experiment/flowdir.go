package experiment

import (
	"path/filepath"

	"github.com/animus-labs/flowlab/internal/flow"
)

const flowsDir = "flows"

// resolveFlowDir returns basePath/name when it holds a flow descriptor and
// basePath/flows/name otherwise. The result is absolute when possible.
func resolveFlowDir(basePath, name string) string {
	dir := filepath.Join(basePath, name)
	if !flow.HasDescriptor(dir) {
		dir = filepath.Join(basePath, flowsDir, name)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}
