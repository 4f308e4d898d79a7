// Package di provides dependency injection configuration for the PageMark server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/pagemark/pagemark-server/internal/config"
	"github.com/pagemark/pagemark-server/internal/di/providers"
	"github.com/pagemark/pagemark-server/internal/logger"
	"github.com/pagemark/pagemark-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideCatalog)

	// Workers
	do.Provide(injector, providers.ProvideOffloadBridge)
	do.Provide(injector, providers.ProvideRetentionJob)

	// Business services
	do.Provide(injector, providers.ProvideTrackingService)
	do.Provide(injector, providers.ProvideReadingService)
	do.Provide(injector, providers.ProvideStatsService)

	// Server
	do.Provide(injector, providers.ProvideStatsRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.CatalogHandle](injector)

	// Workers
	_ = do.MustInvoke[*providers.OffloadBridgeHandle](injector)
	_ = do.MustInvoke[*providers.RetentionJob](injector)

	// Business services
	_ = do.MustInvoke[*providers.TrackingServiceHandle](injector)
	_ = do.MustInvoke[*service.ReadingService](injector)
	_ = do.MustInvoke[*service.StatsService](injector)

	// Server
	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
