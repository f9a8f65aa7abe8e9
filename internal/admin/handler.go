// Package admin exposes the claims administration HTTP surface: the
// authority operations, the audit trail, and service health. All mutating
// routes are expected to sit behind the guard middleware requiring
// MANAGE_USERS.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/lumina-lms/lumina-authz/internal/audit"
	"github.com/lumina-lms/lumina-authz/internal/authority"
	"github.com/lumina-lms/lumina-authz/internal/claims"
	"github.com/lumina-lms/lumina-authz/internal/platform/httpx"
	"github.com/lumina-lms/lumina-authz/jobs"
)

// AuthorityClient is the slice of the authority client the handlers use.
type AuthorityClient interface {
	SetClaims(ctx context.Context, principalID string, rec claims.Record) error
	UpdateClaims(ctx context.Context, principalID string, updates claims.Update) error
	GetClaims(ctx context.Context, principalID string) (*claims.Record, error)
	RemoveClaims(ctx context.Context, principalID string) error
	HealthCheck(ctx context.Context) error
}

// ProbeEnqueuer submits propagation probes after mutations.
type ProbeEnqueuer interface {
	EnqueuePropagationProbe(ctx context.Context, payload jobs.PropagationProbePayload) (*asynq.TaskInfo, error)
}

// Handler wires HTTP endpoints for claims administration.
type Handler struct {
	logger    *slog.Logger
	authority AuthorityClient
	audit     *audit.Service
	probes    ProbeEnqueuer
	validator *validator.Validate
}

// NewHandler constructs a Handler instance. The probe enqueuer may be nil
// when no worker is deployed.
func NewHandler(logger *slog.Logger, client AuthorityClient, auditSvc *audit.Service, probes ProbeEnqueuer) *Handler {
	return &Handler{
		logger:    logger,
		authority: client,
		audit:     auditSvc,
		probes:    probes,
		validator: validator.New(),
	}
}

// MountRoutes registers admin routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/v1/principals/{principalID}/claims", func(r chi.Router) {
		r.Put("/", h.setClaims)
		r.Patch("/", h.updateClaims)
		r.Get("/", h.getClaims)
		r.Delete("/", h.removeClaims)
	})
	r.Get("/v1/audit", h.listAudit)
}

func (h *Handler) setClaims(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "principalID")

	var raw map[string]any
	if err := httpx.DecodeJSON(r, &raw); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", "request body must be a JSON object")
		return
	}
	if res := claims.Validate(raw); !res.Valid {
		httpx.ProblemWithErrors(w, http.StatusBadRequest, "Validation Failed", res.Errors)
		return
	}
	rec := claims.RecordFromMap(raw)
	actor := actorFrom(r)
	rec.UpdatedBy = actor
	rec.UpdatedAt = time.Now().UTC()

	before := h.priorClaims(r.Context(), principalID)
	if err := h.authority.SetClaims(r.Context(), principalID, *rec); err != nil {
		h.respondAuthorityError(w, err)
		return
	}
	h.recordMutation(r.Context(), principalID, actor, audit.ActionSet, before, rec)
	h.enqueueProbe(r.Context(), principalID, "set", rec.UpdatedAt)

	httpx.JSON(w, http.StatusOK, rec)
}

// updateRequest is the partial-update DTO. The accessLevel bounds here are
// an input constraint on this surface only; stored records with
// out-of-catalog levels are tolerated by validation downstream.
type updateRequest struct {
	Role        *string  `json:"role" validate:"omitempty,oneof=student parent instructor franchise_admin super_admin"`
	FranchiseID *string  `json:"franchiseId"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,required"`
	IsActive    *bool    `json:"isActive"`
	UserType    *string  `json:"userType"`
	AccessLevel *int     `json:"accessLevel" validate:"omitempty,min=1,max=5"`
}

func (h *Handler) updateClaims(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "principalID")

	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", "request body must be a JSON object")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		msgs := []string{err.Error()}
		if errors.As(err, &fieldErrs) {
			msgs = msgs[:0]
			for _, fe := range fieldErrs {
				msgs = append(msgs, fe.Error())
			}
		}
		httpx.ProblemWithErrors(w, http.StatusBadRequest, "Validation Failed", msgs)
		return
	}

	actor := actorFrom(r)
	updates := req.toUpdate()
	updates.UpdatedBy = &actor

	before := h.priorClaims(r.Context(), principalID)
	if err := h.authority.UpdateClaims(r.Context(), principalID, updates); err != nil {
		h.respondAuthorityError(w, err)
		return
	}

	var after *claims.Record
	if before != nil {
		merged := claims.Merge(*before, updates)
		after = &merged
	}
	h.recordMutation(r.Context(), principalID, actor, audit.ActionUpdate, before, after)
	h.enqueueProbe(r.Context(), principalID, "update", time.Now().UTC())

	httpx.NoContent(w)
}

func (h *Handler) getClaims(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "principalID")
	rec, err := h.authority.GetClaims(r.Context(), principalID)
	if err != nil {
		h.respondAuthorityError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) removeClaims(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "principalID")
	actor := actorFrom(r)

	before := h.priorClaims(r.Context(), principalID)
	if err := h.authority.RemoveClaims(r.Context(), principalID); err != nil {
		h.respondAuthorityError(w, err)
		return
	}
	h.recordMutation(r.Context(), principalID, actor, audit.ActionRemove, before, nil)
	h.enqueueProbe(r.Context(), principalID, "remove", time.Now().UTC())

	httpx.NoContent(w)
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Audit Unavailable", "audit trail is not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.audit.Recent(r.Context(), r.URL.Query().Get("principal"), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// Health reports service and authority liveness. Mounted outside the guard.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "authority": "ok"}
	code := http.StatusOK
	if err := h.authority.HealthCheck(r.Context()); err != nil {
		status["authority"] = "unreachable"
		code = http.StatusServiceUnavailable
		if h.logger != nil {
			h.logger.Warn("authority health check failed", slog.Any("error", err))
		}
	}
	httpx.JSON(w, code, status)
}

// priorClaims fetches the authority's current view for the audit snapshot.
// Missing principals and transient read failures degrade to a nil snapshot
// rather than blocking the mutation.
func (h *Handler) priorClaims(ctx context.Context, principalID string) *claims.Record {
	rec, err := h.authority.GetClaims(ctx, principalID)
	if err != nil {
		if !errors.Is(err, authority.ErrNotFound) && h.logger != nil {
			h.logger.Warn("prior claims unavailable",
				slog.String("principal", principalID),
				slog.Any("error", err),
			)
		}
		return nil
	}
	return rec
}

func (h *Handler) recordMutation(ctx context.Context, principalID, actor string, action audit.Action, before, after *claims.Record) {
	if h.audit == nil {
		return
	}
	if _, err := h.audit.RecordMutation(ctx, principalID, actor, action, before, after); err != nil && h.logger != nil {
		h.logger.Error("record claims mutation", slog.Any("error", err))
	}
}

func (h *Handler) enqueueProbe(ctx context.Context, principalID, action string, mutatedAt time.Time) {
	if h.probes == nil {
		return
	}
	_, err := h.probes.EnqueuePropagationProbe(ctx, jobs.PropagationProbePayload{
		PrincipalID: principalID,
		Action:      action,
		MutatedAt:   mutatedAt,
	})
	if err != nil && h.logger != nil {
		h.logger.Warn("enqueue propagation probe", slog.Any("error", err))
	}
}

func (h *Handler) respondAuthorityError(w http.ResponseWriter, err error) {
	if h.logger != nil {
		h.logger.Error("authority call failed", slog.Any("error", err))
	}
	switch {
	case errors.Is(err, authority.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, authority.ErrUnauthorized):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		httpx.Problem(w, http.StatusBadGateway, "Authority Unavailable", "the claims authority could not be reached")
	}
}

func actorFrom(r *http.Request) string {
	if actor := r.Header.Get("X-Actor"); actor != "" {
		return actor
	}
	return "unknown"
}

func (req updateRequest) toUpdate() claims.Update {
	out := claims.Update{
		FranchiseID: req.FranchiseID,
		IsActive:    req.IsActive,
		UserType:    req.UserType,
		AccessLevel: req.AccessLevel,
	}
	if req.Role != nil {
		role := claims.Role(*req.Role)
		out.Role = &role
	}
	if req.Permissions != nil {
		perms := make([]claims.Permission, len(req.Permissions))
		for i, p := range req.Permissions {
			perms[i] = claims.Permission(p)
		}
		out.Permissions = perms
	}
	return out
}
