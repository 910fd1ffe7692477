package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/quillcms/quill/internal/health"
	"github.com/quillcms/quill/internal/http/handler"
	"github.com/quillcms/quill/internal/http/middleware"
	"github.com/quillcms/quill/internal/http/response"
)

type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	PostHandler     *handler.PostHandler
	PageHandler     *handler.PageHandler
	CategoryHandler *handler.CategoryHandler
	CommentHandler  *handler.CommentHandler
	UserHandler     *handler.UserHandler
	PublicHandler   *handler.PublicHandler

	CORSOrigins        []string
	APIRateLimitRPM    int
	PublicRateLimitRPM int
	APIRateLimiter     func(http.Handler) http.Handler
	PublicRateLimiter  func(http.Handler) http.Handler

	Readiness      *health.ProbeRunner
	EnableOTelHTTP bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))

	apiLimiter := dep.APIRateLimiter
	if apiLimiter == nil {
		apiLimiter = middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute, "api").Middleware()
	}
	publicLimiter := dep.PublicRateLimiter
	if publicLimiter == nil {
		publicLimiter = middleware.NewRateLimiter(dep.PublicRateLimitRPM, time.Minute, "public").Middleware()
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.JSON(w, r, http.StatusServiceUnavailable, map[string]any{"status": "unready", "checks": results})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apiLimiter)

		r.Mount("/auth", dep.AuthHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(middleware.CSRF)
			r.Mount("/posts", dep.PostHandler.Routes())
			r.Mount("/pages", dep.PageHandler.Routes())
			r.Mount("/categories", dep.CategoryHandler.Routes())
			r.Mount("/comments", dep.CommentHandler.Routes())
			r.Mount("/users", dep.UserHandler.Routes())
		})

		r.Group(func(r chi.Router) {
			r.Use(publicLimiter)
			r.Mount("/public", dep.PublicHandler.Routes())
		})
	})

	if dep.EnableOTelHTTP {
		return otelhttp.NewHandler(r, "http.server")
	}
	return r
}
