package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// WriteRunIDs writes the names of results to path as a JSON array, the
// format ReadRunIDs accepts.
func WriteRunIDs(path string, results []Result) error {
	names := make([]string, 0, len(results))
	for _, res := range results {
		names = append(names, res.Name)
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write run ids: %w", err)
	}
	return nil
}

// ReadRunIDs accepts a file holding a JSON array of run names, an inline
// JSON array, or a comma separated list.
func ReadRunIDs(arg string) ([]string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, errors.New("run ids are required")
	}
	source := arg
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		raw, err := os.ReadFile(arg)
		if err != nil {
			return nil, fmt.Errorf("read run ids: %w", err)
		}
		source = strings.TrimSpace(string(raw))
		if source == "" {
			return []string{}, nil
		}
	}

	if strings.HasPrefix(source, "[") {
		var names []string
		if err := json.Unmarshal([]byte(source), &names); err != nil {
			return nil, fmt.Errorf("decode run ids: %w", err)
		}
		return compact(names), nil
	}
	return compact(strings.Split(source, ",")), nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, name := range in {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
