package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/internal/service"
	"github.com/nexlane/solutionhub/pkg/health"
	"github.com/nexlane/solutionhub/pkg/middleware"
)

// RouterDeps bundles everything the router wires together.
type RouterDeps struct {
	Catalog       *service.CatalogService
	Reviews       *service.ReviewService
	Votes         *service.VoteService
	Bookings      *service.BookingService
	BillingSync   *service.BillingSyncService
	WebhookDedup  DedupStore
	WebhookSecret string
	Health        *health.Handler
	Auth          middleware.TokenValidator
	RateLimiter   *middleware.RateLimiter
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
}

// NewRouter creates a chi router with all solutionhub routes registered.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	logger := deps.Logger

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("solutionhub"))
	r.Use(middleware.Tracing("solutionhub"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(deps.CORS))

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	catalogHandler := NewCatalogHandler(deps.Catalog, logger)
	reviewHandler := NewReviewHandler(deps.Reviews, logger)
	voteHandler := NewVoteHandler(deps.Votes, logger)
	bookingHandler := NewBookingHandler(deps.Bookings, logger)
	webhookHandler := NewWebhookHandler(deps.BillingSync, deps.WebhookDedup, deps.WebhookSecret, logger)

	authed := middleware.Auth(deps.Auth)
	limited := deps.RateLimiter.Middleware()

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public read endpoints.
		r.Get("/assets", catalogHandler.ListAssets)
		r.Get("/assets/{idOrSlug}", catalogHandler.GetAsset)
		r.Get("/assets/{id}/reviews", reviewHandler.ListReviewsFor(domain.TargetAsset))
		r.Get("/solutions", catalogHandler.ListSolutions)
		r.Get("/solutions/{idOrSlug}", catalogHandler.GetSolution)
		r.Get("/solutions/{id}/reviews", reviewHandler.ListReviewsFor(domain.TargetSolution))

		// Authenticated mutations, rate limited per client.
		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Use(limited)

			r.Post("/assets/{id}/reviews", reviewHandler.CreateReviewFor(domain.TargetAsset))
			r.Post("/solutions/{id}/reviews", reviewHandler.CreateReviewFor(domain.TargetSolution))
			r.Put("/reviews/{id}", reviewHandler.UpdateReview)
			r.Delete("/reviews/{id}", reviewHandler.DeleteReview)

			r.Post("/assets/{id}/votes", voteHandler.ToggleVoteFor(domain.TargetAsset))
			r.Post("/solutions/{id}/votes", voteHandler.ToggleVoteFor(domain.TargetSolution))

			r.Post("/solutions/{id}/bookings", bookingHandler.CreateBooking)
			r.Get("/bookings/{id}", bookingHandler.GetBooking)

			// Lifecycle control is for staff only.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole("staff"))

				r.Post("/bookings/{id}/status", bookingHandler.UpdateBookingStatus)
				r.Delete("/bookings/{id}", bookingHandler.DeleteBooking)
			})
		})
	})

	// Webhooks authenticate by signature, not JWT.
	r.Post("/webhooks/billing", webhookHandler.HandleBillingWebhook)

	return r
}

// ContentTypeJSON sets the response content type for API routes.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
