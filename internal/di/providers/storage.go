package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/pagemark/pagemark-server/internal/config"
	"github.com/pagemark/pagemark-server/internal/logger"
	"github.com/pagemark/pagemark-server/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	h.cancel()
	return h.Close()
}

// ProvideStore provides the reading event store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Data.BasePath, "db")
	db, err := store.New(dbPath, log.Logger, store.NewNoopEmitter())
	if err != nil {
		return nil, err
	}

	log.Info("Database opened", "path", dbPath)

	// Warm the read-state index in the background. Until it completes
	// the store reports not-ready and queries serve conservative empty
	// results instead of blocking startup.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := db.Init(ctx); err != nil {
			log.Error("Store initialization failed", "error", err)
			return
		}
		log.Info("Store ready")
	}()

	return &StoreHandle{Store: db, cancel: cancel}, nil
}
