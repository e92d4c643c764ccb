package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/internal/repository"
	"github.com/nexlane/solutionhub/internal/service"
	"github.com/nexlane/solutionhub/pkg/httputil"
	"github.com/nexlane/solutionhub/pkg/middleware"
	"github.com/nexlane/solutionhub/pkg/validator"
)

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateReviewRequest is the JSON request body for recording a review.
type CreateReviewRequest struct {
	Rating int    `json:"rating" validate:"required,gte=1,lte=10"`
	Body   string `json:"body" validate:"max=4000"`
}

// UpdateReviewRequest is the JSON request body for amending a review.
type UpdateReviewRequest struct {
	Rating int    `json:"rating" validate:"required,gte=1,lte=10"`
	Body   string `json:"body" validate:"max=4000"`
}

// reviewResponse pairs a review with the target's refreshed counters.
type reviewResponse struct {
	Review  *domain.Review          `json:"review"`
	Summary domain.AggregateSummary `json:"summary"`
}

// --- Handlers ---

// CreateReviewFor handles POST /api/v1/{assets|solutions}/{id}/reviews for
// the given target type.
func (h *ReviewHandler) CreateReviewFor(targetType domain.TargetType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

		var req CreateReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
			})
			return
		}

		if err := validator.Validate(req); err != nil {
			httputil.WriteValidationError(w, err)
			return
		}

		review, summary, err := h.service.RecordReview(r.Context(), service.RecordReviewInput{
			TargetType: string(targetType),
			TargetID:   id.String(),
			ActorID:    middleware.UserIDFromContext(r.Context()),
			Rating:     req.Rating,
			Body:       req.Body,
		})
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: reviewResponse{Review: review, Summary: summary}})
	}
}

// ListReviewsFor handles GET /api/v1/{assets|solutions}/{id}/reviews.
func (h *ReviewHandler) ListReviewsFor(targetType domain.TargetType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
		if !ok {
			return
		}

		page, perPage := httputil.ParsePagination(r)
		reviews, total, summary, err := h.service.ListReviews(r.Context(), string(targetType), id.String(), repository.ListFilter{
			Page:    page,
			PerPage: perPage,
		})
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, reviewListResponse{
			PaginatedResponse: httputil.NewPaginatedResponse(reviews, total, page, perPage),
			Summary:           summary,
		})
	}
}

// reviewListResponse extends the paginated envelope with the target's
// counter summary.
type reviewListResponse struct {
	httputil.PaginatedResponse[domain.Review]
	Summary domain.AggregateSummary `json:"summary"`
}

// UpdateReview handles PUT /api/v1/reviews/{id}
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, summary, err := h.service.AmendReview(r.Context(), id.String(), middleware.UserIDFromContext(r.Context()), req.Rating, req.Body)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: reviewResponse{Review: review, Summary: summary}})
}

// DeleteReview handles DELETE /api/v1/reviews/{id}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	summary, err := h.service.RetractReview(r.Context(), id.String(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"summary": summary}})
}
