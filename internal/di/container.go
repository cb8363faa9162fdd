// Package di assembles the application from its configuration.
package di

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"bytepad-backend/internal/config"
	"bytepad-backend/internal/infrastructure/localprocess"
	"bytepad-backend/internal/infrastructure/observability"
	"bytepad-backend/internal/infrastructure/persistence/filestore"
	"bytepad-backend/internal/service/commands"
	"bytepad-backend/internal/service/syncer"
)

// Options select how the process runs.
type Options struct {
	Version string
	// Authoritative makes this process the owner of the data file: commands
	// skip the desktop app and the local-process API is served from here.
	Authoritative bool
}

// LocalAPIHandler serves the local-process contract over the file store.
type LocalAPIHandler http.Handler

// Container holds the wired application.
type Container struct {
	Config     *config.Config
	Options    Options
	Logger     *zap.Logger
	Collector  *observability.Collector
	Tracer     trace.Tracer
	Store      *filestore.Store
	SyncConfig *config.SyncConfigStore
	Bridge     *localprocess.Bridge
	Reconciler *syncer.Reconciler
	Scheduler  *syncer.Scheduler
	Registry   *commands.Registry
	Gateway    *commands.Gateway
	Router     *chi.Mux
	LocalAPI   LocalAPIHandler
}

// Shutdown stops the background work owned by the container. Resources
// released by the injector cleanup are not touched.
func (c *Container) Shutdown() {
	c.Scheduler.Stop()
}
