package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexlane/solutionhub/internal/service"
	"github.com/nexlane/solutionhub/pkg/httputil"
	"github.com/nexlane/solutionhub/pkg/middleware"
	"github.com/nexlane/solutionhub/pkg/validator"
)

// BookingHandler handles HTTP requests for booking endpoints.
type BookingHandler struct {
	service *service.BookingService
	logger  *slog.Logger
}

// NewBookingHandler creates a new booking HTTP handler.
func NewBookingHandler(svc *service.BookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		service: svc,
		logger:  logger,
	}
}

// CreateBookingRequest is the JSON request body for creating a booking.
type CreateBookingRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// UpdateBookingStatusRequest is the JSON request body for a lifecycle transition.
type UpdateBookingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress in_review completed cancelled"`
}

// CreateBooking handles POST /api/v1/solutions/{id}/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// An empty body is fine; the booker email is optional.
		req = CreateBookingRequest{}
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.CreateBooking(r.Context(), service.CreateBookingInput{
		SolutionID:  id.String(),
		BookedBy:    middleware.UserIDFromContext(r.Context()),
		BookerEmail: req.Email,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: result})
}

// GetBooking handles GET /api/v1/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	booking, err := h.service.GetBooking(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: booking})
}

// UpdateBookingStatus handles POST /api/v1/bookings/{id}/status
func (h *BookingHandler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateBookingStatusRequest
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

	booking, err := h.service.TransitionBooking(r.Context(), id.String(), req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: booking})
}

// DeleteBooking handles DELETE /api/v1/bookings/{id}
func (h *BookingHandler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteBooking(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
