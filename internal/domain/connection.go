package domain

import (
	"errors"
	"maps"
	"strings"

	"github.com/animus-labs/flowlab/internal/platform/envsubst"
)

// CustomConnectionType is the connection type carrying free-form configs
// and secrets.
const CustomConnectionType = "CustomConnection"

// Connection is a named external service credential/config bundle.
// Configs and Secrets are only populated for custom connections.
type Connection struct {
	Name       string
	Type       string
	Properties map[string]string
	Configs    map[string]string
	Secrets    map[string]string
}

func (c Connection) IsCustom() bool {
	return strings.EqualFold(c.Type, CustomConnectionType)
}

// Resolve substitutes "${...}" placeholders using the key
// "<CONNECTION>_<PROPERTY>". Unresolved placeholders fail for regular
// connections and are kept verbatim for custom ones.
func (c Connection) Resolve(r envsubst.Resolver) (Connection, error) {
	policy := envsubst.Required
	if c.IsCustom() {
		policy = envsubst.Optional
	}
	out := Connection{Name: c.Name, Type: c.Type}

	var err error
	if out.Properties, err = c.resolveMap(r, c.Properties, policy); err != nil {
		return Connection{}, err
	}
	if c.Configs != nil {
		if out.Configs, err = c.resolveMap(r, c.Configs, envsubst.Optional); err != nil {
			return Connection{}, err
		}
	}
	if c.Secrets != nil {
		if out.Secrets, err = c.resolveMap(r, c.Secrets, envsubst.Optional); err != nil {
			return Connection{}, err
		}
	}
	return out, nil
}

func (c Connection) resolveMap(r envsubst.Resolver, in map[string]string, policy envsubst.Policy) (map[string]string, error) {
	out := make(map[string]string, len(in))
	for key, value := range in {
		resolved, err := r.Resolve(c.Name+"_"+key, value, policy)
		if err != nil {
			var unresolved *envsubst.UnresolvedError
			if errors.As(err, &unresolved) {
				return nil, ConfigErrorf("connection '%s' property '%s': %s", c.Name, key, unresolved.Error())
			}
			return nil, err
		}
		out[key] = resolved
	}
	return out, nil
}

func (c Connection) Equal(other Connection) bool {
	return c.Name == other.Name &&
		c.Type == other.Type &&
		maps.Equal(c.Properties, other.Properties) &&
		maps.Equal(c.Configs, other.Configs) &&
		maps.Equal(c.Secrets, other.Secrets)
}
