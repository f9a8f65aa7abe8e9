package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lumina-lms/lumina-authz/internal/admin"
	"github.com/lumina-lms/lumina-authz/internal/claims"
	"github.com/lumina-lms/lumina-authz/internal/guard"
	"github.com/lumina-lms/lumina-authz/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	AdminHandler *admin.Handler
	Metrics      *observability.Metrics
}

// NewRouter constructs the chi.Router. Health and metrics are open; the
// admin claims surface sits behind the guard requiring MANAGE_USERS.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", params.AdminHandler.Health)
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	adminGuard := guard.Middleware{Logger: params.Logger}
	r.Group(func(r chi.Router) {
		r.Use(adminGuard.RequirePermissions(claims.PermManageUsers))
		params.AdminHandler.MountRoutes(r)
	})

	return r
}
