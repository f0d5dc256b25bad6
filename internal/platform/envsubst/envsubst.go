// Package envsubst resolves "${NAME}" placeholders found in declarative
// configuration. Resolution order is: explicit value, environment lookup,
// then the literal placeholder when the policy is Optional.
package envsubst

import (
	"fmt"
	"os"
	"strings"
)

// Policy selects what happens when a placeholder cannot be resolved.
type Policy int

const (
	// Required fails on unresolved placeholders.
	Required Policy = iota
	// Optional keeps the literal placeholder.
	Optional
)

// LookupFunc mirrors os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// UnresolvedError is returned for Required placeholders with no value.
type UnresolvedError struct {
	Key         string
	Placeholder string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("placeholder %s could not be resolved from %s", e.Placeholder, e.Key)
}

type Resolver struct {
	Explicit map[string]string
	Lookup   LookupFunc
}

// New returns a Resolver reading the process environment when lookup is nil.
func New(lookup LookupFunc) Resolver {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return Resolver{Lookup: lookup}
}

// IsPlaceholder reports whether value has the "${NAME}" form.
func IsPlaceholder(value string) bool {
	v := strings.TrimSpace(value)
	return len(v) > 3 && strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}")
}

// Reference returns NAME for "${NAME}", or "" for non placeholders.
func Reference(value string) string {
	if !IsPlaceholder(value) {
		return ""
	}
	v := strings.TrimSpace(value)
	return v[2 : len(v)-1]
}

// Resolve substitutes value when it is a placeholder, looking up key.
// Non placeholder values are returned unchanged.
func (r Resolver) Resolve(key, value string, policy Policy) (string, error) {
	if !IsPlaceholder(value) {
		return value, nil
	}
	key = strings.ToUpper(strings.TrimSpace(key))
	if v, ok := r.Explicit[key]; ok {
		return v, nil
	}
	if r.Lookup != nil {
		if v, ok := r.Lookup(key); ok && v != "" {
			return v, nil
		}
	}
	if policy == Optional {
		return value, nil
	}
	return "", &UnresolvedError{Key: key, Placeholder: value}
}
