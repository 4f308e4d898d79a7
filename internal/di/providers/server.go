package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/pagemark/pagemark-server/internal/api"
	"github.com/pagemark/pagemark-server/internal/config"
	"github.com/pagemark/pagemark-server/internal/logger"
	"github.com/pagemark/pagemark-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// RateLimiterHandle wraps the stats rate limiter with Shutdownable.
type RateLimiterHandle struct {
	*api.RateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideStatsRateLimiter provides the per-IP rate limiter for stats endpoints.
func ProvideStatsRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &RateLimiterHandle{
		RateLimiter: api.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
	}, nil
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	catalogHandle := do.MustInvoke[*CatalogHandle](i)
	limiterHandle := do.MustInvoke[*RateLimiterHandle](i)

	trackingHandle := do.MustInvoke[*TrackingServiceHandle](i)
	readingService := do.MustInvoke[*service.ReadingService](i)
	statsService := do.MustInvoke[*service.StatsService](i)

	handler := api.NewServer(trackingHandle.TrackingService, readingService, statsService, catalogHandle.Catalog, limiterHandle.RateLimiter, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
