// cmd/harvester/wire.go
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"procurement-harvester/internal/common/aws"
	"procurement-harvester/internal/common/blobstore"
	"procurement-harvester/internal/common/config"
	"procurement-harvester/internal/common/database"
	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/lock"
	"procurement-harvester/internal/common/logger"
	"procurement-harvester/internal/common/messaging"
	"procurement-harvester/internal/common/observability"
	indexdataset "procurement-harvester/internal/workers/data-access/index-dataset"
	recordrun "procurement-harvester/internal/workers/data-access/record-run"
	notifyrun "procurement-harvester/internal/workers/communication/notify-run"
	publishdatasetevent "procurement-harvester/internal/workers/communication/publish-dataset-event"
	collectcategory "procurement-harvester/internal/workers/harvest/collect-category"
	fetchpages "procurement-harvester/internal/workers/harvest/fetch-pages"
	runharvest "procurement-harvester/internal/workers/harvest/run-harvest"
	schedulecategories "procurement-harvester/internal/workers/harvest/schedule-categories"
	mergedataset "procurement-harvester/internal/workers/storage/merge-dataset"
	"procurement-harvester/pkg/registry"
)

// pipeline owns the run handler and every client it opened.
type pipeline struct {
	handler *runharvest.Handler
	closers []func()
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// buildPipeline wires the store, lock, optional sinks and the run handler.
// Optional sinks that cannot connect are disabled with a warning.
func buildPipeline(ctx context.Context, cfg *config.Config, obs *observability.Observability, log logger.Logger) (*pipeline, error) {
	p := &pipeline{}

	catalog, err := registry.LoadCatalog(cfg.Harvest.CatalogPath)
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("load catalog %s", cfg.Harvest.CatalogPath), err)
	}

	store, err := blobstore.New(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}

	locker, err := newLocker(ctx, cfg, log, p)
	if err != nil {
		p.Close()
		return nil, err
	}

	fetchCfg := fetchpages.LoadConfig(cfg)
	tracer := obs.Tracer()

	deps := runharvest.Dependencies{
		Catalog: catalog,
		NewFetcher: func(cat *registry.Category) collectcategory.Fetcher {
			return fetchpages.NewHandler(fetchCfg, tracer, log)
		},
		Scheduler:     schedulecategories.NewScheduler(schedulecategories.LoadConfig(cfg), log),
		Merger:        mergedataset.NewHandler(mergedataset.LoadConfig(cfg), store, locker, log),
		Observability: obs,
	}

	wireLedger(ctx, cfg, log, p, &deps)
	wireIndexer(ctx, cfg, log, &deps)
	wireEvents(cfg, log, p, &deps)
	wireNotifier(ctx, cfg, log, &deps)

	p.handler = runharvest.NewHandler(deps, log)
	return p, nil
}

func newLocker(ctx context.Context, cfg *config.Config, log logger.Logger, p *pipeline) (lock.Locker, error) {
	if cfg.Lock.Backend != "redis" {
		return lock.NewKeyedMutex(), nil
	}
	rdb, err := database.NewRedis(ctx, cfg.Database.Redis)
	if err != nil {
		if isAuthFailure(err) {
			return nil, apperrors.NewConfigError("redis rejected the configured credentials", err)
		}
		return nil, err
	}
	p.closers = append(p.closers, func() { rdb.Close() })
	return lock.NewRedisLocker(rdb, cfg.Lock.Prefix, config.GetDuration(cfg.Lock.TTL), log), nil
}

// isAuthFailure reports whether a redis error means the password is wrong
// rather than the server being unreachable.
func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "NOAUTH") || strings.Contains(msg, "WRONGPASS")
}

// setupExitCode maps a buildPipeline failure to the process exit code. Bad
// configuration or credentials are usage errors.
func setupExitCode(err error) int {
	if errors.Is(err, apperrors.ErrConfig) {
		return exitUsage
	}
	return exitFailure
}

func wireLedger(ctx context.Context, cfg *config.Config, log logger.Logger, p *pipeline, deps *runharvest.Dependencies) {
	if !cfg.Database.Postgres.Enabled {
		return
	}
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		log.Warn("run ledger disabled", map[string]interface{}{"error": err.Error()})
		return
	}
	p.closers = append(p.closers, func() { pg.Close() })
	if err := pg.Ping(ctx); err != nil {
		log.Warn("run ledger disabled", map[string]interface{}{"error": err.Error()})
		return
	}

	ledger := recordrun.NewHandler(recordrun.LoadConfig(), pg.DB, log)
	if err := ledger.EnsureSchema(ctx); err != nil {
		log.Warn("run ledger disabled", map[string]interface{}{"error": err.Error()})
		return
	}
	deps.Ledger = ledger
}

func wireIndexer(ctx context.Context, cfg *config.Config, log logger.Logger, deps *runharvest.Dependencies) {
	if !cfg.Database.Elasticsearch.Enabled {
		return
	}
	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err == nil {
		err = es.Ping(ctx)
	}
	if err != nil {
		log.Warn("search mirror disabled", map[string]interface{}{"error": err.Error()})
		return
	}
	deps.Indexer = indexdataset.NewHandler(indexdataset.LoadConfig(cfg), es.Client, log)
}

func wireEvents(cfg *config.Config, log logger.Logger, p *pipeline, deps *runharvest.Dependencies) {
	if !cfg.Messaging.RabbitMQ.Enabled {
		return
	}
	pub, err := messaging.Dial(cfg.Messaging.RabbitMQ)
	if err != nil {
		log.Warn("dataset events disabled", map[string]interface{}{"error": err.Error()})
		return
	}
	p.closers = append(p.closers, func() { pub.Close() })
	deps.Events = publishdatasetevent.NewHandler(pub, log)
}

func wireNotifier(ctx context.Context, cfg *config.Config, log logger.Logger, deps *runharvest.Dependencies) {
	ncfg := notifyrun.LoadConfig(cfg)
	if !ncfg.SNSEnabled && !ncfg.SESEnabled {
		return
	}
	awsCfg, err := aws.LoadConfig(ctx, cfg.Notifications.Region)
	if err != nil {
		log.Warn("run notification disabled", map[string]interface{}{"error": err.Error()})
		return
	}

	var publisher notifyrun.Publisher
	var mailer notifyrun.Mailer
	if ncfg.SNSEnabled {
		publisher = aws.NewSNSClient(awsCfg)
	}
	if ncfg.SESEnabled {
		mailer = aws.NewSESClient(awsCfg)
	}
	deps.Notifier = notifyrun.NewHandler(ncfg, publisher, mailer, log)
}
