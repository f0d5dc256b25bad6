package experiment

import (
	"fmt"
	"strings"

	"github.com/animus-labs/flowlab/internal/domain"
)

func createConnections(raw []map[string]any) ([]domain.Connection, error) {
	connections := make([]domain.Connection, 0, len(raw))
	for _, entry := range raw {
		name := nameOf(entry)
		if err := requireKeys(entry, fmt.Sprintf("connection '%s' config missing", name), "name", "connection_type"); err != nil {
			return nil, err
		}

		conn := domain.Connection{
			Name:       name,
			Type:       trimmed(entry["connection_type"]),
			Properties: map[string]string{},
		}
		var configs, secrets map[string]string
		for key, value := range entry {
			if key == "name" || key == "connection_type" {
				continue
			}
			if nested, ok := asMap(value); ok {
				var err error
				switch {
				case strings.Contains(key, "configs"):
					configs, err = stringMap(nested, fmt.Sprintf("connection '%s' %s", name, key))
				case strings.Contains(key, "secrets"):
					secrets, err = stringMap(nested, fmt.Sprintf("connection '%s' %s", name, key))
				default:
					err = domain.ConfigErrorf("connection '%s' property '%s' must be a scalar", name, key)
				}
				if err != nil {
					return nil, err
				}
				continue
			}
			if !isScalar(value) {
				return nil, domain.ConfigErrorf("connection '%s' property '%s' must be a scalar", name, key)
			}
			conn.Properties[key] = stringValue(value)
		}

		if conn.IsCustom() {
			conn.Configs = nonNil(configs)
			conn.Secrets = nonNil(secrets)
		}
		connections = append(connections, conn)
	}
	return connections, nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
