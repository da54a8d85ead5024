package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/FACorreiaa/easytrip-api/docs"
	"github.com/FACorreiaa/easytrip-api/internal/api/place"
	"github.com/FACorreiaa/easytrip-api/internal/api/review"
	"github.com/FACorreiaa/easytrip-api/internal/api/user"
)

type Middleware = func(http.Handler) http.Handler

// Config contains dependencies needed for the router setup
type Config struct {
	PlaceHandler  place.Handler
	ReviewHandler review.Handler
	UserHandler   user.Handler

	// Authenticate verifies the bearer token; RequireAdmin must run after it.
	Authenticate Middleware
	RequireAdmin Middleware
	// Cache wraps the public read routes. Nil disables response caching.
	Cache Middleware

	AllowedOrigins []string
	// ReviewsPerMinute caps review submissions per client IP. Zero disables it.
	ReviewsPerMinute int
}

// SetupRouter initializes and configures the API router. Server-wide
// middleware (request id, logger, recoverer) is applied by the caller.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Cache"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api/v1", func(r chi.Router) {
		// Public reads
		r.Group(func(r chi.Router) {
			if cfg.Cache != nil {
				r.Use(cfg.Cache)
			}
			r.Get("/places", cfg.PlaceHandler.ListPlaces)
			r.Get("/places/search", cfg.PlaceHandler.SearchPlaces)
			r.Get("/places/explore", cfg.PlaceHandler.ExplorePlaces)
			r.Get("/places/{id}", cfg.PlaceHandler.GetPlace)
			r.Get("/places/{id}/related", cfg.PlaceHandler.RelatedPlaces)
			r.Get("/places/{id}/reviews", cfg.ReviewHandler.ListReviews)
			r.Get("/themes", cfg.PlaceHandler.Themes)
		})

		// Signed-in users
		r.Group(func(r chi.Router) {
			r.Use(cfg.Authenticate)
			r.Get("/me", cfg.UserHandler.Me)
			r.With(rateLimit(cfg.ReviewsPerMinute)).Post("/places/{id}/reviews", cfg.ReviewHandler.SubmitReview)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(cfg.Authenticate)
			r.Use(cfg.RequireAdmin)

			r.Post("/places", cfg.PlaceHandler.CreatePlace)
			r.Put("/places/{id}", cfg.PlaceHandler.UpdatePlace)
			r.Delete("/places/{id}", cfg.PlaceHandler.DeletePlace)
			r.Post("/places/{id}/image", cfg.PlaceHandler.ReplacePrimaryImage)
			r.Post("/places/{id}/images", cfg.PlaceHandler.AddPlaceImage)
			r.Delete("/places/{id}/images/{imageID}", cfg.PlaceHandler.DeletePlaceImage)

			r.Get("/admins", cfg.UserHandler.ListAdmins)
			r.Post("/admins", cfg.UserHandler.GrantAdmin)
			r.Delete("/admins/{userID}", cfg.UserHandler.RevokeAdmin)
		})
	})

	return r
}

func rateLimit(perMinute int) Middleware {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(perMinute, time.Minute)
}
