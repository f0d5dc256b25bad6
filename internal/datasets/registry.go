// Package datasets resolves experiment datasets to data references and
// registers local dataset files in the dataset registry.
package datasets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrNotFound is returned by registries for unknown names or versions.
var ErrNotFound = errors.New("dataset not found")

// Version is one immutable registered copy of a dataset.
type Version struct {
	Name        string
	Version     string
	Hash        string
	Description string
	Object      string
}

// Reference renders the registry source of v.
func (v Version) Reference() string {
	return "registry:" + v.Name + ":" + v.Version
}

// Registry stores versioned dataset files.
type Registry interface {
	Latest(ctx context.Context, name string) (Version, error)
	Get(ctx context.Context, name, version string) (Version, error)
	Upload(ctx context.Context, v Version, path string) (Version, error)
}

// nextVersion returns the version after latest. Registries number versions
// from 1 and an empty latest means nothing is registered yet.
func nextVersion(latest string) (string, error) {
	if latest == "" {
		return "1", nil
	}
	n, err := strconv.Atoi(latest)
	if err != nil || n < 1 {
		return "", fmt.Errorf("latest version %q is not a positive integer", latest)
	}
	return strconv.Itoa(n + 1), nil
}
