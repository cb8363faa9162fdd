package di

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"bytepad-backend/internal/config"
	"bytepad-backend/internal/infrastructure/cache"
	"bytepad-backend/internal/infrastructure/localprocess"
	"bytepad-backend/internal/infrastructure/observability"
	"bytepad-backend/internal/infrastructure/persistence/filestore"
	"bytepad-backend/internal/infrastructure/remote"
	"bytepad-backend/internal/interfaces/http/handlers"
	"bytepad-backend/internal/interfaces/http/localapi"
	"bytepad-backend/internal/service/backend"
	"bytepad-backend/internal/service/commands"
	"bytepad-backend/internal/service/syncer"
)

// Result cache limits. Command results are small JSON documents.
const (
	resultCacheMaxItems  = 10000
	resultCacheMaxMemory = 32 << 20
)

func provideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

// provideCollector returns nil when metrics are disabled. Collector methods
// accept a nil receiver.
func provideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return observability.NewCollector(cfg.Metrics.Namespace)
}

func provideTracerProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

func provideTracer(tp *observability.TracerProvider) trace.Tracer {
	return tp.Tracer()
}

// provideStore loads the document before anything can read it.
func provideStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*filestore.Store, error) {
	store := filestore.New(cfg.DataDir, logger)
	if _, err := store.Load(ctx); err != nil {
		return nil, fmt.Errorf("load %s: %w", store.Path(), err)
	}
	return store, nil
}

func provideSyncConfigStore(cfg *config.Config) (*config.SyncConfigStore, error) {
	store := config.NewSyncConfigStore(cfg.DataDir)
	if _, err := store.Load(); err != nil {
		return nil, fmt.Errorf("load %s: %w", store.Path(), err)
	}
	return store, nil
}

func provideBridge(cfg *config.Config, collector *observability.Collector, logger *zap.Logger) *localprocess.Bridge {
	return localprocess.NewBridge(cfg.LocalProcess, collector, logger)
}

func provideRemoteClient(cfg *config.Config, logger *zap.Logger) (*remote.Client, error) {
	return remote.NewClient(cfg.Remote, logger)
}

// provideChain tries the desktop app first, then the file store. An
// authoritative process owns the file and never asks the app.
func provideChain(opts Options, file *backend.FileBackend, bridge *localprocess.Bridge,
	collector *observability.Collector, tracer trace.Tracer, logger *zap.Logger) *backend.Chain {
	if opts.Authoritative {
		return backend.NewChain(collector, tracer, logger, file)
	}
	return backend.NewChain(collector, tracer, logger, backend.NewLocalBackend(bridge), file)
}

func provideReconciler(store *filestore.Store, client *remote.Client, syncConfig *config.SyncConfigStore,
	collector *observability.Collector, tracer trace.Tracer, logger *zap.Logger) *syncer.Reconciler {
	return syncer.NewReconciler(store, client, syncConfig, collector, tracer, logger)
}

// provideScheduler restarts auto-sync whenever a command changes the sync
// configuration.
func provideScheduler(reconciler *syncer.Reconciler, collector *observability.Collector, logger *zap.Logger) *syncer.Scheduler {
	scheduler := syncer.NewScheduler(reconciler, collector, logger)
	reconciler.OnConfigChange(scheduler.Reconfigure)
	return scheduler
}

func provideRegistry(chain *backend.Chain, reconciler *syncer.Reconciler, scheduler *syncer.Scheduler) *commands.Registry {
	return commands.NewCatalog(commands.Dependencies{
		Backend:   chain,
		Sync:      reconciler,
		Scheduler: scheduler,
	})
}

func provideResultCache(logger *zap.Logger) *cache.MemoryCache {
	return cache.NewMemoryCache(resultCacheMaxItems, resultCacheMaxMemory, logger)
}

func provideGateway(registry *commands.Registry, results *cache.MemoryCache, cfg *config.Config,
	collector *observability.Collector, tracer trace.Tracer, logger *zap.Logger) *commands.Gateway {
	return commands.NewGateway(registry, results, cfg.Commands.DedupTTL, collector, tracer, logger)
}

func provideHealthHandler(store *filestore.Store, bridge *localprocess.Bridge, opts Options) *handlers.HealthHandler {
	if opts.Authoritative {
		return handlers.NewHealthHandler(store, nil, opts.Version)
	}
	return handlers.NewHealthHandler(store, bridge, opts.Version)
}

func provideLocalAPI(file *backend.FileBackend, logger *zap.Logger) LocalAPIHandler {
	return localapi.NewHandler(file, logger)
}

func provideContainer(
	cfg *config.Config,
	opts Options,
	logger *zap.Logger,
	collector *observability.Collector,
	tracer trace.Tracer,
	store *filestore.Store,
	syncConfig *config.SyncConfigStore,
	bridge *localprocess.Bridge,
	reconciler *syncer.Reconciler,
	scheduler *syncer.Scheduler,
	registry *commands.Registry,
	gateway *commands.Gateway,
	router *chi.Mux,
	localAPI LocalAPIHandler,
) *Container {
	return &Container{
		Config:     cfg,
		Options:    opts,
		Logger:     logger,
		Collector:  collector,
		Tracer:     tracer,
		Store:      store,
		SyncConfig: syncConfig,
		Bridge:     bridge,
		Reconciler: reconciler,
		Scheduler:  scheduler,
		Registry:   registry,
		Gateway:    gateway,
		Router:     router,
		LocalAPI:   localAPI,
	}
}
