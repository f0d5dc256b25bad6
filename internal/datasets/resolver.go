package datasets

import (
	"context"
	"errors"

	"github.com/animus-labs/flowlab/internal/domain"
)

// Resolver turns datasets into the data references submitted with runs.
type Resolver struct {
	registry Registry
	basePath string
}

// NewResolver returns a Resolver. With a nil registry, registry sources
// pass through unchanged and local sources resolve to file paths.
func NewResolver(registry Registry, basePath string) *Resolver {
	return &Resolver{registry: registry, basePath: basePath}
}

// Resolve returns the registry reference of ds: the pinned version for
// registry sources after checking it exists, or the latest registered
// version of a local dataset.
func (r *Resolver) Resolve(ctx context.Context, ds domain.Dataset) (string, error) {
	if r.registry == nil {
		if ds.IsRegistrySource() {
			return ds.Source, nil
		}
		return r.Local(ds), nil
	}

	if ds.IsRegistrySource() {
		name, version, ok := ds.RegistryRef()
		if !ok {
			return "", domain.ConfigErrorf("dataset '%s' has malformed registry source %s", ds.Name, ds.Source)
		}
		v, err := r.registry.Get(ctx, name, version)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return "", domain.ConfigErrorf("dataset '%s' version %s not found in registry", name, version)
			}
			return "", err
		}
		return v.Reference(), nil
	}

	v, err := r.registry.Latest(ctx, ds.Name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", domain.ConfigErrorf("dataset '%s' is not registered", ds.Name)
		}
		return "", err
	}
	return v.Reference(), nil
}

// Local returns the local file path of ds, or "" for registry sources.
func (r *Resolver) Local(ds domain.Dataset) string {
	return ds.LocalSource(r.basePath)
}
