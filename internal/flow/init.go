package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/animus-labs/flowlab/internal/platform/envsubst"
)

const initFilename = "init.json"

// LoadInit reads the constructor parameters of a code flow from init.json.
// String placeholders resolve from KEY (or KEY_SUBKEY for nested objects)
// and are kept verbatim when the variable is unset. A missing file yields
// an empty map.
func LoadInit(dir string, lookup envsubst.LookupFunc) (map[string]any, error) {
	raw, err := os.ReadFile(filepath.Join(dir, initFilename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", initFilename, err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", initFilename, err)
	}

	resolver := envsubst.New(lookup)
	out := make(map[string]any, len(data))
	for key, value := range data {
		switch v := value.(type) {
		case map[string]any:
			inner := make(map[string]any, len(v))
			for subKey, subValue := range v {
				inner[subKey] = resolveInitValue(resolver, key+"_"+subKey, subValue)
			}
			out[key] = inner
		case string:
			out[key] = resolveInitValue(resolver, key, v)
		default:
			out[key] = v
		}
	}
	return out, nil
}

func resolveInitValue(r envsubst.Resolver, key string, value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	resolved, err := r.Resolve(key, s, envsubst.Optional)
	if err != nil {
		return s
	}
	return resolved
}
