package experiment

import (
	"fmt"
	"strings"
	"time"

	"github.com/animus-labs/flowlab/internal/domain"
)

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// asEntries converts a YAML list of mappings. Null yields an empty list.
func asEntries(v any, what string) ([]map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, domain.ConfigErrorf("%s must be a list", what)
	}
	out := make([]map[string]any, 0, len(list))
	for i, item := range list {
		m, ok := asMap(item)
		if !ok {
			return nil, domain.ConfigErrorf("%s[%d] must be a mapping", what, i)
		}
		out = append(out, m)
	}
	return out, nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, int, int64, uint64, float64, time.Time:
		return true
	default:
		return false
	}
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// stringMap converts a mapping of scalars. Null and an empty list are
// accepted as an empty mapping.
func stringMap(v any, what string) (map[string]string, error) {
	if v == nil {
		return map[string]string{}, nil
	}
	if list, ok := v.([]any); ok && len(list) == 0 {
		return map[string]string{}, nil
	}
	m, ok := asMap(v)
	if !ok {
		return nil, domain.ConfigErrorf("%s must be a mapping", what)
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if !isScalar(val) {
			return nil, domain.ConfigErrorf("%s value for %s must be a scalar", what, k)
		}
		out[k] = stringValue(val)
	}
	return out, nil
}

func nameOf(m map[string]any) string {
	return stringValue(m["name"])
}

func requireKeys(m map[string]any, message string, keys ...string) error {
	for _, key := range keys {
		if _, ok := m[key]; !ok {
			return domain.ConfigErrorf("%s: %s", message, key)
		}
	}
	return nil
}

func forbidKeys(m map[string]any, message string, keys ...string) error {
	for _, key := range keys {
		if _, ok := m[key]; ok {
			return domain.ConfigErrorf("%s: %s", message, key)
		}
	}
	return nil
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func trimmed(v any) string {
	return strings.TrimSpace(stringValue(v))
}
