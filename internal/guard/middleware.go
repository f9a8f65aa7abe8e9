package guard

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lumina-lms/lumina-authz/internal/claims"
	"github.com/lumina-lms/lumina-authz/internal/token"
)

type recordContextKey struct{}

// ContextWithRecord stores the request's claim record in context.
func ContextWithRecord(ctx context.Context, rec *claims.Record) context.Context {
	return context.WithValue(ctx, recordContextKey{}, rec)
}

// RecordFromContext extracts the claim record placed by the middleware.
func RecordFromContext(ctx context.Context) *claims.Record {
	rec, _ := ctx.Value(recordContextKey{}).(*claims.Record)
	return rec
}

// Middleware wires guard checks into HTTP handlers. The bearer token on each
// request is decoded (not verified; verification belongs to the gateway that
// issued it) into a claim record, and the configured requirement is applied
// with the same semantics as Decide.
type Middleware struct {
	Logger *slog.Logger
}

// RequireRole admits only requests whose record carries exactly this role.
func (m Middleware) RequireRole(role claims.Role) func(http.Handler) http.Handler {
	return m.require(Requirement{Role: role})
}

// RequirePermissions admits only requests whose record carries every listed
// permission. With no permissions listed the request only needs to be
// authenticated and active.
func (m Middleware) RequirePermissions(perms ...claims.Permission) func(http.Handler) http.Handler {
	return m.require(Requirement{Permissions: perms})
}

func (m Middleware) require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := recordFromRequest(r)
			// A decoded record means the caller authenticated; an inactive
			// one is denied as unauthorized, the same rule RouteTable
			// applies, rather than being treated as anonymous.
			authenticated := rec != nil

			decision := Decide(false, authenticated, rec, req)
			if decision == DecisionRender && !rec.IsActive {
				decision = DecisionRedirectUnauthorized
			}

			switch decision {
			case DecisionRender:
				next.ServeHTTP(w, r.WithContext(ContextWithRecord(r.Context(), rec)))
			case DecisionRedirectLogin:
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			default:
				if m.Logger != nil {
					m.Logger.Warn("request denied",
						slog.String("path", r.URL.Path),
						slog.String("required_role", string(req.Role)),
					)
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			}
		})
	}
}

// recordFromRequest decodes the bearer token into a claim record. Missing or
// malformed tokens yield nil, which Decide treats as unauthenticated.
func recordFromRequest(r *http.Request) *claims.Record {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil
	}
	return token.ExtractClaims(raw)
}
