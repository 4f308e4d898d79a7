package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pagemark/pagemark-server/internal/http/response"
	"github.com/pagemark/pagemark-server/internal/service"
)

// handleStartReading records a section-became-visible transition.
// Idempotent: repeating the same target for a surface is a no-op.
func (s *Server) handleStartReading(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req service.StartReadingRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	if err := s.trackingService.StartReading(ctx, req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.NoContent(w)
}

// handleEndReading closes a surface's active session.
func (s *Server) handleEndReading(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req service.EndReadingRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	if err := s.trackingService.EndReading(ctx, req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.NoContent(w)
}

// handleCloseSurface tears down a surface. Returns immediately; any
// in-flight session is flushed in the background.
func (s *Server) handleCloseSurface(w http.ResponseWriter, r *http.Request) {
	surfaceID := chi.URLParam(r, "surfaceID")
	if surfaceID == "" {
		response.BadRequest(w, "Surface ID is required", s.logger)
		return
	}

	s.trackingService.CloseSurface(surfaceID)
	response.NoContent(w)
}

// handleListDocuments returns the catalog.
func (s *Server) handleListDocuments(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, s.catalog.Documents(), s.logger)
}

// handleGetDocument returns one document's metadata.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		response.BadRequest(w, "Document path is required", s.logger)
		return
	}

	doc, ok := s.catalog.Get(path)
	if !ok {
		response.NotFound(w, "Document not found", s.logger)
		return
	}

	response.Success(w, doc, s.logger)
}

// ReadSectionsResponse lists the sections of a document that have at
// least one reading event.
type ReadSectionsResponse struct {
	DocumentPath string   `json:"document_path"`
	SectionIDs   []string `json:"section_ids"`
	Ready        bool     `json:"ready"`
}

// handleReadSections returns a document's read section set.
func (s *Server) handleReadSections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path := r.URL.Query().Get("path")
	if path == "" {
		response.BadRequest(w, "Document path is required", s.logger)
		return
	}

	sections, err := s.readingService.ReadSections(ctx, path)
	if err != nil {
		s.logger.Error("Failed to load read sections", "error", err, "document_path", path)
		response.InternalError(w, "Failed to retrieve read sections", s.logger)
		return
	}

	ids := make([]string, 0, len(sections))
	for id := range sections {
		ids = append(ids, id)
	}

	response.Success(w, ReadSectionsResponse{
		DocumentPath: path,
		SectionIDs:   ids,
		Ready:        s.readingService.Ready(),
	}, s.logger)
}

// CompletionResponse reports a document's completion percentage.
type CompletionResponse struct {
	DocumentPath string  `json:"document_path"`
	Percentage   float64 `json:"percentage"`
}

// handleCompletion returns a document's completion percentage.
func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path := r.URL.Query().Get("path")
	if path == "" {
		response.BadRequest(w, "Document path is required", s.logger)
		return
	}

	pct, err := s.readingService.DocumentCompletion(ctx, path)
	if err != nil {
		s.logger.Error("Failed to compute completion", "error", err, "document_path", path)
		response.InternalError(w, "Failed to compute completion", s.logger)
		return
	}

	response.Success(w, CompletionResponse{
		DocumentPath: path,
		Percentage:   pct,
	}, s.logger)
}
