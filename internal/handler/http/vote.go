package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/internal/service"
	"github.com/nexlane/solutionhub/pkg/httputil"
	"github.com/nexlane/solutionhub/pkg/middleware"
)

// VoteHandler handles HTTP requests for vote endpoints.
type VoteHandler struct {
	service *service.VoteService
	logger  *slog.Logger
}

// NewVoteHandler creates a new vote HTTP handler.
func NewVoteHandler(svc *service.VoteService, logger *slog.Logger) *VoteHandler {
	return &VoteHandler{
		service: svc,
		logger:  logger,
	}
}

// ToggleVoteRequest is the JSON request body for casting a vote.
type ToggleVoteRequest struct {
	IsUpvote bool `json:"is_upvote"`
}

// ToggleVoteFor handles POST /api/v1/{assets|solutions}/{id}/votes for the
// given target type. Repeated calls flip the caller's existing vote in
// place rather than stacking rows.
func (h *VoteHandler) ToggleVoteFor(targetType domain.TargetType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

		var req ToggleVoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
			})
			return
		}

		vote, err := h.service.ToggleVote(r.Context(), service.ToggleVoteInput{
			TargetType: string(targetType),
			TargetID:   id.String(),
			ActorID:    middleware.UserIDFromContext(r.Context()),
			IsUpvote:   req.IsUpvote,
		})
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: vote})
	}
}
