// Package http expõe o portal via chi: autenticação, conta e documentos.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mpcoop/portal/internal/auth"
	"github.com/mpcoop/portal/internal/config"
	"github.com/mpcoop/portal/internal/documents"
	httpmiddleware "github.com/mpcoop/portal/internal/http/middleware"
	"github.com/mpcoop/portal/internal/obs"
	"github.com/mpcoop/portal/internal/service"
)

// ReadinessCheck verifica uma dependência externa.
type ReadinessCheck func(ctx context.Context) error

// Deps reúne os serviços montados em cmd/api.
type Deps struct {
	Auth      *service.AuthService
	Documents *documents.Service
	Metrics   *obs.Metrics
	// Checks é consultado por /ready, chaveado pelo nome da dependência.
	Checks map[string]ReadinessCheck
}

// Handler agrega dependências usadas pelas rotas HTTP.
type Handler struct {
	cfg         *config.Config
	authService *service.AuthService
	documents   *documents.Service
	checks      map[string]ReadinessCheck

	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	userLimiter   *httpmiddleware.RateLimiter
}

// NewRouter monta o roteador principal.
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	h := &Handler{
		cfg:           cfg,
		authService:   deps.Auth,
		documents:     deps.Documents,
		checks:        deps.Checks,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		userLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument)
	}
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	requireAuth := httpmiddleware.Auth(h.authService)

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Route("/auth", func(a chi.Router) {
			a.With(httpmiddleware.IPRateLimit(h.authLimiter)).Post("/login", h.Login)
			a.With(httpmiddleware.IPRateLimit(h.authLimiter)).Post("/refresh", h.Refresh)
			a.Post("/logout", h.Logout)
			a.With(requireAuth).Get("/me", h.Me)
		})

		public.Route("/users", func(u chi.Router) {
			u.Get("/activate-account", h.ActivateAccount)
			u.With(httpmiddleware.IPRateLimit(h.authLimiter)).Post("/forgot-password", h.ForgotPassword)
			u.With(httpmiddleware.IPRateLimit(h.authLimiter)).Post("/reset-password", h.ResetPassword)
			u.With(requireAuth, httpmiddleware.RequireRoles(auth.RoleAdmin)).Post("/{id}/activation", h.SendActivation)
		})

		public.Get("/mail/unsubscribe", h.Unsubscribe)

		public.Route("/documents", func(d chi.Router) {
			d.Group(func(read chi.Router) {
				read.Use(httpmiddleware.OptionalAuth(h.authService))
				read.Get("/", h.ListDocuments)
				read.Get("/{id}/download", h.DownloadDocument)
			})
			d.Group(func(write chi.Router) {
				write.Use(requireAuth)
				write.Use(httpmiddleware.UserRateLimit(h.userLimiter))
				write.Post("/", h.UploadDocument)
				write.Delete("/{id}", h.DeleteDocument)
			})
		})
	})

	return r
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready consulta cada dependência registrada.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failures := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "dependências indisponíveis", failures)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}
