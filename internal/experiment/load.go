package experiment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/animus-labs/flowlab/internal/domain"
)

// LoadExperiment reads filename (DefaultFilename when empty) from basePath
// and, when env is set and "<stem>.<env><ext>" exists next to it, applies
// that overlay. JSON documents are accepted as YAML.
func LoadExperiment(filename, basePath, env string) (*Experiment, error) {
	if strings.TrimSpace(filename) == "" {
		filename = DefaultFilename
	}

	path := filepath.Join(basePath, filename)
	config, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, domain.ConfigErrorf("experiment file %s is empty", path)
	}

	exp, datasets, err := loadBaseExperiment(config, basePath)
	if err != nil {
		return nil, err
	}

	env = strings.TrimSpace(env)
	if env == "" {
		return exp, nil
	}
	overlayPath := filepath.Join(basePath, OverlayFilename(filename, env))
	if !fileExists(overlayPath) {
		return exp, nil
	}
	overlay, err := readDocument(overlayPath)
	if err != nil {
		return nil, err
	}
	if err := applyOverlay(exp, datasets, overlay); err != nil {
		return nil, fmt.Errorf("apply overlay %s: %w", overlayPath, err)
	}
	return exp, nil
}

// OverlayFilename returns the environment overlay name for filename, e.g.
// experiment.dev.yaml for experiment.yaml and env "dev".
func OverlayFilename(filename, env string) string {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	return stem + "." + env + ext
}

func loadBaseExperiment(config map[string]any, basePath string) (*Experiment, map[string]domain.Dataset, error) {
	name := trimmed(config["name"])
	if name == "" {
		return nil, nil, domain.ConfigErrorf("experiment config missing parameter: name")
	}

	rawDatasets, err := asEntries(config["datasets"], "datasets")
	if err != nil {
		return nil, nil, err
	}
	if len(rawDatasets) == 0 {
		return nil, nil, domain.ConfigErrorf("no datasets configured for experiment")
	}
	datasets, mapped, err := createDatasetsAndDefaultMappings(rawDatasets)
	if err != nil {
		return nil, nil, err
	}

	rawEvaluators, err := asEntries(config["evaluators"], "evaluators")
	if err != nil {
		return nil, nil, err
	}
	evaluators, err := createEvaluators(rawEvaluators, datasets, basePath)
	if err != nil {
		return nil, nil, err
	}

	rawConnections, err := asEntries(config["connections"], "connections")
	if err != nil {
		return nil, nil, err
	}
	connections, err := createConnections(rawConnections)
	if err != nil {
		return nil, nil, err
	}

	flowName := trimmed(config["flow"])
	if flowName == "" {
		flowName = name
	}
	return &Experiment{
		BasePath:    basePath,
		Name:        name,
		Flow:        flowName,
		Datasets:    mapped,
		Evaluators:  evaluators,
		Connections: connections,
		Runtime:     trimmed(config["runtime"]),
	}, datasets, nil
}

// readDocument decodes a YAML or JSON mapping. A missing file is a
// ConfigError; an empty document yields nil.
func readDocument(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ConfigErrorf("could not open experiment file %s", path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, domain.ConfigErrorf("parse %s: %v", path, err)
	}
	if doc == nil {
		return nil, nil
	}
	m, ok := asMap(doc)
	if !ok {
		return nil, domain.ConfigErrorf("%s must hold a mapping", path)
	}
	return m, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
