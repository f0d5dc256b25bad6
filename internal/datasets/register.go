package datasets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/animus-labs/flowlab/internal/domain"
	"github.com/animus-labs/flowlab/internal/experiment"
	"github.com/animus-labs/flowlab/internal/platform/logging"
)

// Registration outcomes.
const (
	StatusCreated   = "created"
	StatusUnchanged = "unchanged"
)

type Registration struct {
	Dataset string
	Version Version
	Status  string
}

// Register uploads every local dataset of exp, standard and evaluation,
// whose content hash differs from the latest registered version.
func Register(ctx context.Context, registry Registry, exp *experiment.Experiment, logger *slog.Logger) ([]Registration, error) {
	if registry == nil {
		return nil, fmt.Errorf("dataset registry is required")
	}
	if logger == nil {
		logger = logging.Discard()
	}

	var out []Registration
	for _, ds := range collect(exp) {
		localPath := ds.LocalSource(exp.BasePath)
		if localPath == "" {
			continue
		}
		hash, err := FileHash(localPath)
		if err != nil {
			return out, fmt.Errorf("hash dataset %s: %w", ds.Name, err)
		}

		latest, err := registry.Latest(ctx, ds.Name)
		switch {
		case err == nil && latest.Hash == hash:
			logger.Info("dataset unchanged", "dataset", ds.Name, "version", latest.Version, "hash", hash)
			out = append(out, Registration{Dataset: ds.Name, Version: latest, Status: StatusUnchanged})
			continue
		case err != nil && !errors.Is(err, ErrNotFound):
			return out, fmt.Errorf("lookup dataset %s: %w", ds.Name, err)
		}

		version, err := nextVersion(latest.Version)
		if err != nil {
			return out, fmt.Errorf("dataset %s: %w", ds.Name, err)
		}
		uploaded, err := registry.Upload(ctx, Version{
			Name:        ds.Name,
			Version:     version,
			Hash:        hash,
			Description: ds.Description,
		}, localPath)
		if err != nil {
			return out, err
		}
		logger.Info("dataset registered", "dataset", ds.Name, "version", uploaded.Version, "previous_hash", latest.Hash, "hash", hash)
		out = append(out, Registration{Dataset: ds.Name, Version: uploaded, Status: StatusCreated})
	}
	return out, nil
}

// collect returns the standard and evaluation datasets of exp keyed by
// name, later declarations winning, in order of first appearance.
func collect(exp *experiment.Experiment) []domain.Dataset {
	var order []string
	byName := make(map[string]domain.Dataset)
	add := func(ds domain.Dataset) {
		if _, ok := byName[ds.Name]; !ok {
			order = append(order, ds.Name)
		}
		byName[ds.Name] = ds
	}
	for _, mapped := range exp.Datasets {
		add(mapped.Dataset)
	}
	for _, evaluator := range exp.Evaluators {
		for _, mapped := range evaluator.Datasets {
			add(mapped.Dataset)
		}
	}

	out := make([]domain.Dataset, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

// FileHash returns the hex sha256 of the file at path.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
