package di

import (
	"github.com/google/wire"

	"bytepad-backend/internal/interfaces/http/handlers"
	"bytepad-backend/internal/service/backend"
)

// SuperSet combines all provider sets for the complete application.
var SuperSet = wire.NewSet(
	ObservabilityProviders,
	InfrastructureProviders,
	ServiceProviders,
	InterfaceProviders,
	provideContainer,
)

// ObservabilityProviders provides logging, metrics and tracing.
var ObservabilityProviders = wire.NewSet(
	provideLogger,
	provideCollector,
	provideTracerProvider,
	provideTracer,
)

// InfrastructureProviders provides the stores and the outbound clients.
var InfrastructureProviders = wire.NewSet(
	provideStore,
	provideSyncConfigStore,
	provideBridge,
	provideRemoteClient,
	provideResultCache,
)

// ServiceProviders provides the backend chain, sync and the command gateway.
var ServiceProviders = wire.NewSet(
	backend.NewFileBackend,
	provideChain,
	provideReconciler,
	provideScheduler,
	provideRegistry,
	provideGateway,
)

// InterfaceProviders provides the HTTP surfaces.
var InterfaceProviders = wire.NewSet(
	handlers.NewCommandHandler,
	provideHealthHandler,
	provideLocalAPI,
	SetupRouter,
)
