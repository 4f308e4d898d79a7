package providers

import (
	"github.com/samber/do/v2"

	"github.com/pagemark/pagemark-server/internal/logger"
	"github.com/pagemark/pagemark-server/internal/service"
)

// TrackingServiceHandle wraps the tracking service so every surface is
// flushed on shutdown.
type TrackingServiceHandle struct {
	*service.TrackingService
}

// Shutdown implements do.Shutdownable.
func (h *TrackingServiceHandle) Shutdown() error {
	h.TrackingService.Shutdown()
	return nil
}

// ProvideTrackingService provides the session tracking service.
func ProvideTrackingService(i do.Injector) (*TrackingServiceHandle, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	catalogHandle := do.MustInvoke[*CatalogHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewTrackingService(storeHandle.Store, catalogHandle.Catalog, log.Logger)
	return &TrackingServiceHandle{TrackingService: svc}, nil
}

// ProvideReadingService provides the read-state and completion service.
func ProvideReadingService(i do.Injector) (*service.ReadingService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	catalogHandle := do.MustInvoke[*CatalogHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewReadingService(storeHandle.Store, catalogHandle.Catalog, log.Logger), nil
}

// ProvideStatsService provides the reading analytics service.
func ProvideStatsService(i do.Injector) (*service.StatsService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	catalogHandle := do.MustInvoke[*CatalogHandle](i)
	bridgeHandle := do.MustInvoke[*OffloadBridgeHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewStatsService(storeHandle.Store, catalogHandle.Catalog, bridgeHandle.Bridge, log.Logger), nil
}
