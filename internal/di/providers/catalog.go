package providers

import (
	"context"
	"os"

	"github.com/samber/do/v2"

	"github.com/pagemark/pagemark-server/internal/catalog"
	"github.com/pagemark/pagemark-server/internal/config"
	"github.com/pagemark/pagemark-server/internal/logger"
)

// CatalogHandle wraps the catalog with its watcher lifecycle.
type CatalogHandle struct {
	*catalog.Catalog
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *CatalogHandle) Shutdown() error {
	if h.cancel != nil {
		h.cancel()
	}
	return nil
}

// ProvideCatalog provides the document catalog, watching the manifest
// directory for changes when enabled.
func ProvideCatalog(i do.Injector) (*CatalogHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Catalog.ManifestPath, 0o750); err != nil {
		return nil, err
	}

	c, err := catalog.New(cfg.Catalog.ManifestPath, log.Logger)
	if err != nil {
		return nil, err
	}

	handle := &CatalogHandle{Catalog: c}

	if cfg.Catalog.Watch {
		ctx, cancel := context.WithCancel(context.Background())
		handle.cancel = cancel

		go func() {
			if err := c.Watch(ctx); err != nil {
				log.Error("Catalog watcher error", "error", err)
			}
		}()
	}

	return handle, nil
}
