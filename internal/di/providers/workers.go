package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/pagemark/pagemark-server/internal/config"
	"github.com/pagemark/pagemark-server/internal/logger"
	"github.com/pagemark/pagemark-server/internal/offload"
)

// OffloadBridgeHandle wraps the analytics offload bridge with shutdown capability.
type OffloadBridgeHandle struct {
	*offload.Bridge
}

// Shutdown implements do.Shutdownable.
func (h *OffloadBridgeHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideOffloadBridge provides the analytics offload worker.
func ProvideOffloadBridge(i do.Injector) (*OffloadBridgeHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	bridge := offload.New(log.Logger)
	bridge.Start()

	return &OffloadBridgeHandle{Bridge: bridge}, nil
}

// RetentionJob runs periodic reading event pruning.
type RetentionJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *RetentionJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideRetentionJob provides the periodic event retention job.
// Disabled when the retention window is zero; the event log then grows
// without bound.
func ProvideRetentionJob(i do.Injector) (*RetentionJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())

	if cfg.Retention.Window == 0 {
		log.Info("Event retention disabled, keeping all reading events")
		return &RetentionJob{cancel: cancel}, nil
	}

	go func() {
		ticker := time.NewTicker(cfg.Retention.Interval)
		defer ticker.Stop()

		prune := func() {
			cutoff := time.Now().Add(-cfg.Retention.Window)
			if count, err := storeHandle.PruneEventsBefore(ctx, cutoff); err != nil {
				log.Warn("Event pruning failed", "error", err)
			} else if count > 0 {
				log.Info("Event pruning completed", "deleted", count)
			}
		}

		// Initial prune on startup
		prune()

		for {
			select {
			case <-ticker.C:
				prune()
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Event retention job started",
		"window", cfg.Retention.Window,
		"interval", cfg.Retention.Interval,
	)

	return &RetentionJob{cancel: cancel}, nil
}
