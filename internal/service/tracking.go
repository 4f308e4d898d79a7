package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pagemark/pagemark-server/internal/catalog"
	domainerrors "github.com/pagemark/pagemark-server/internal/errors"
	"github.com/pagemark/pagemark-server/internal/store"
	"github.com/pagemark/pagemark-server/internal/tracker"
)

// validate is a shared validator instance for request validation.
var validate = func() *validator.Validate {
	v := validator.New()
	// Use JSON tag names for field names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		// Remove any options (like omitempty, -)
		for i := range len(name) {
			if name[i] == ',' {
				return name[:i]
			}
		}
		return name
	})
	return v
}()

// formatValidationError converts validator errors to domain errors.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		// Return first validation error as a domain error
		for _, e := range validationErrs {
			field := e.Field()
			switch e.Tag() {
			case "required":
				return domainerrors.Validationf("%s is required", field)
			case "min":
				return domainerrors.Validationf("%s must be at least %s", field, e.Param())
			case "max":
				return domainerrors.Validationf("%s exceeds maximum of %s", field, e.Param())
			case "gt":
				return domainerrors.Validationf("%s must be greater than %s", field, e.Param())
			case "lte":
				return domainerrors.Validationf("%s must be at most %s", field, e.Param())
			default:
				return domainerrors.Validationf("%s is invalid", field)
			}
		}
	}
	return err
}

// TrackingService manages one session tracker per UI surface. Each
// surface drives its own independent state machine; two open documents
// never share an active session.
type TrackingService struct {
	store   *store.Store
	catalog *catalog.Catalog
	logger  *slog.Logger

	mu       sync.Mutex
	trackers map[string]*tracker.Tracker
}

// NewTrackingService creates a new tracking service.
func NewTrackingService(store *store.Store, catalog *catalog.Catalog, logger *slog.Logger) *TrackingService {
	return &TrackingService{
		store:    store,
		catalog:  catalog,
		logger:   logger,
		trackers: make(map[string]*tracker.Tracker),
	}
}

// StartReadingRequest identifies the surface and its new reading target.
type StartReadingRequest struct {
	SurfaceID    string `json:"surface_id" validate:"required,max=128"`
	DocumentPath string `json:"document_path" validate:"required,max=1024"`
	SectionID    string `json:"section_id" validate:"required,max=256"`
}

// StartReading routes a section-became-visible transition to the
// surface's tracker, creating the tracker on first use.
func (s *TrackingService) StartReading(ctx context.Context, req StartReadingRequest) error {
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	t := s.trackerFor(req.SurfaceID)
	if err := t.StartReading(ctx, req.DocumentPath, req.SectionID); err != nil {
		// The state machine has already moved on; the lost event is
		// reported but must not fail the new session.
		s.logger.Warn("previous session event dropped",
			"surface_id", req.SurfaceID,
			"error", err)
	}
	return nil
}

// EndReadingRequest identifies the surface whose session ends.
type EndReadingRequest struct {
	SurfaceID string `json:"surface_id" validate:"required,max=128"`
}

// EndReading closes the surface's active session, if any. Unknown
// surfaces and idle trackers are both no-ops.
func (s *TrackingService) EndReading(ctx context.Context, req EndReadingRequest) error {
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	s.mu.Lock()
	t, ok := s.trackers[req.SurfaceID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if err := t.EndReading(ctx); err != nil {
		return fmt.Errorf("end reading for surface %s: %w", req.SurfaceID, err)
	}
	return nil
}

// CloseSurface tears a surface down: any active session is flushed
// fire-and-forget and the tracker is discarded. Safe to call from
// disconnect paths that cannot wait.
func (s *TrackingService) CloseSurface(surfaceID string) {
	s.mu.Lock()
	t, ok := s.trackers[surfaceID]
	delete(s.trackers, surfaceID)
	s.mu.Unlock()

	if ok {
		t.Close()
	}
}

// Shutdown flushes every surface. Called once at process exit.
func (s *TrackingService) Shutdown() {
	s.mu.Lock()
	trackers := s.trackers
	s.trackers = make(map[string]*tracker.Tracker)
	s.mu.Unlock()

	for _, t := range trackers {
		t.Close()
	}
}

// trackerFor returns the surface's tracker, creating it if needed.
func (s *TrackingService) trackerFor(surfaceID string) *tracker.Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trackers[surfaceID]
	if !ok {
		t = tracker.New(s.store, s.catalog, s.logger)
		s.trackers[surfaceID] = t
	}
	return t
}
