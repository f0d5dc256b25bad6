package envsubst

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadEnvFile reads a flat YAML map of run environment variables. Keys are
// upper-cased. A value already present in the environment wins; "${REF}"
// values must resolve from the environment; empty values are rejected.
// A missing file yields an empty map.
func LoadEnvFile(path string, lookup LookupFunc) (map[string]string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read env file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode env file %s: %w", path, err)
	}

	out := make(map[string]string, len(doc))
	for rawKey, rawValue := range doc {
		key := strings.ToUpper(strings.TrimSpace(rawKey))
		if existing, ok := lookup(key); ok {
			out[key] = existing
			continue
		}
		value := ""
		if rawValue != nil {
			value = strings.TrimSpace(fmt.Sprint(rawValue))
		}
		if value == "" {
			return nil, fmt.Errorf("%s in %s not resolved", key, path)
		}
		if ref := Reference(value); ref != "" {
			resolved, ok := lookup(ref)
			if !ok {
				return nil, fmt.Errorf("reference %s could not be resolved", value)
			}
			out[key] = resolved
			continue
		}
		out[key] = value
	}
	return out, nil
}
