package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vetclinic/sitemedia/internal/service"
	"github.com/vetclinic/sitemedia/internal/storage"
	"github.com/vetclinic/sitemedia/pkg/health"
	"github.com/vetclinic/sitemedia/pkg/middleware"
)

const serviceName = "media"

// deleteRoles may remove images from the ledger.
var deleteRoles = []string{"admin"}

// RouterConfig carries the dependencies of the HTTP API.
type RouterConfig struct {
	Service        *service.ImageService
	Health         *health.Handler
	Validate       middleware.TokenValidator
	CORS           middleware.CORSConfig
	PprofCIDRs     []string
	MaxUploadBytes int64

	// Media serves /media/* when the storage backend keeps objects locally.
	Media storage.Opener

	// UploadLimiter throttles the upload and optimize routes when set.
	UploadLimiter *middleware.RateLimiter

	// MediaCacheMaxAge is sent for media objects stored without one.
	MediaCacheMaxAge time.Duration
}

// NewRouter creates a chi router with all media service routes registered.
func NewRouter(cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	if cfg.Media != nil {
		mediaHandler := NewMediaHandler(cfg.Media, logger)
		r.With(middleware.CacheControl(cfg.MediaCacheMaxAge, false)).Get("/media/*", mediaHandler.ServeObject)
	}

	imageHandler := NewImageHandler(cfg.Service, cfg.MaxUploadBytes, logger)

	r.Route("/api/v1/images", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Validate))

		r.Get("/", imageHandler.ListImages)
		r.Get("/{id}", imageHandler.GetImage)
		r.With(middleware.RequireRole(deleteRoles...)).Delete("/{id}", imageHandler.DeleteImage)

		r.Group(func(r chi.Router) {
			if cfg.UploadLimiter != nil {
				r.Use(cfg.UploadLimiter.Middleware)
			}
			r.Use(RequireMultipart)

			r.Post("/", imageHandler.UploadImage)
			r.Post("/optimize", imageHandler.OptimizeImage)
		})
	})

	return r
}
