package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexlane/solutionhub/internal/repository"
	"github.com/nexlane/solutionhub/internal/service"
	"github.com/nexlane/solutionhub/pkg/httputil"
)

// CatalogHandler handles HTTP requests for asset and solution reads.
type CatalogHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(svc *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: svc,
		logger:  logger,
	}
}

// ListAssets handles GET /api/v1/assets
func (h *CatalogHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.ParsePagination(r)

	assets, total, err := h.service.ListAssets(r.Context(), repository.ListFilter{Page: page, PerPage: perPage})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(assets, total, page, perPage))
}

// GetAsset handles GET /api/v1/assets/{idOrSlug}
func (h *CatalogHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.service.GetAsset(r.Context(), chi.URLParam(r, "idOrSlug"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: asset})
}

// ListSolutions handles GET /api/v1/solutions
func (h *CatalogHandler) ListSolutions(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.ParsePagination(r)

	solutions, total, err := h.service.ListSolutions(r.Context(), repository.ListFilter{Page: page, PerPage: perPage})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(solutions, total, page, perPage))
}

// GetSolution handles GET /api/v1/solutions/{idOrSlug}
func (h *CatalogHandler) GetSolution(w http.ResponseWriter, r *http.Request) {
	solution, err := h.service.GetSolution(r.Context(), chi.URLParam(r, "idOrSlug"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: solution})
}
