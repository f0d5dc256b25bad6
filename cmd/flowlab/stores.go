package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/animus-labs/flowlab/internal/datasets"
	"github.com/animus-labs/flowlab/internal/domain"
	"github.com/animus-labs/flowlab/internal/execution/submit"
	"github.com/animus-labs/flowlab/internal/execution/submit/dryrun"
	"github.com/animus-labs/flowlab/internal/execution/submit/httpclient"
	"github.com/animus-labs/flowlab/internal/platform/auditlog"
	"github.com/animus-labs/flowlab/internal/platform/env"
	"github.com/animus-labs/flowlab/internal/platform/objectstore"
	"github.com/animus-labs/flowlab/internal/platform/postgres"
	"github.com/animus-labs/flowlab/internal/repo"
	"github.com/animus-labs/flowlab/internal/repo/memory"
	repopg "github.com/animus-labs/flowlab/internal/repo/postgres"
)

// stores bundles the submission ledger and the audit sink. Both live in
// postgres when FLOWLAB_DATABASE_URL is set; otherwise the ledger is kept in
// memory and audit events go to the log.
type stores struct {
	ledger repo.SubmissionRepository
	audit  auditlog.Sink
	close  func()
}

func openStores(ctx context.Context, logger *slog.Logger) (stores, error) {
	cfg, err := postgres.ConfigFromEnv()
	if err != nil {
		return stores{}, domain.ConfigErrorf("invalid database config: %s", err.Error())
	}
	if !cfg.Enabled() {
		logger.Debug("using in-memory submission ledger")
		return stores{
			ledger: memory.NewSubmissionStore(),
			audit:  auditlog.NewLogSink(logger),
			close:  func() {},
		}, nil
	}
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return stores{}, fmt.Errorf("database unavailable: %w", err)
	}
	ledger := repopg.NewSubmissionStore(db)
	if err := ledger.Migrate(ctx); err != nil {
		_ = db.Close()
		return stores{}, fmt.Errorf("migrate submission ledger: %w", err)
	}
	if err := auditlog.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return stores{}, err
	}
	logger.Debug("using postgres submission ledger")
	return stores{
		ledger: ledger,
		audit:  auditlog.NewDBSink(db),
		close:  func() { _ = db.Close() },
	}, nil
}

// actor names who is acting in audit events.
func actor() string {
	return env.String("FLOWLAB_ACTOR", env.String("USER", "flowlab"))
}

// openRegistry builds the dataset registry selected by
// FLOWLAB_DATASET_REGISTRY. A nil registry means datasets are referenced
// by source.
func openRegistry(ctx context.Context, required bool) (datasets.Registry, error) {
	mode := strings.ToLower(strings.TrimSpace(env.String("FLOWLAB_DATASET_REGISTRY", "disabled")))
	switch mode {
	case "", "disabled":
		if required {
			return nil, domain.ConfigErrorf("a dataset registry is required; set FLOWLAB_DATASET_REGISTRY=minio")
		}
		return nil, nil
	case "minio":
		cfg, err := objectstore.ConfigFromEnv()
		if err != nil {
			return nil, domain.ConfigErrorf("invalid object store config: %s", err.Error())
		}
		client, err := objectstore.NewMinIOClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("object store client init failed: %w", err)
		}
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := objectstore.EnsureDatasetsBucket(startupCtx, client, cfg); err != nil {
			return nil, fmt.Errorf("object store unavailable: %w", err)
		}
		registry, err := datasets.NewMinioRegistry(client, cfg.BucketDatasets)
		if err != nil {
			return nil, err
		}
		return registry, nil
	default:
		return nil, domain.ConfigErrorf("unknown dataset registry %q", mode)
	}
}

func newSubmitter(ctx context.Context, kind string, failureRate float64, ledger repo.SubmissionRepository) (submit.Submitter, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "dryrun", "dry-run":
		return dryrun.New(ledger, dryrun.WithFailureRate(failureRate)), nil
	case "http":
		cfg, err := httpclient.ConfigFromEnv()
		if err != nil {
			return nil, domain.ConfigErrorf("invalid submit config: %s", err.Error())
		}
		return httpclient.New(ctx, cfg)
	default:
		return nil, domain.ConfigErrorf("unknown submitter %q", kind)
	}
}
