package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumina-lms/lumina-authz/internal/claims"
)

// Service coordinates writing and reading the claims audit trail.
type Service struct {
	repo   Repository
	logger *slog.Logger
	clock  func() time.Time
}

// NewService constructs an audit service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// RecordMutation appends one mutation to the trail. The before snapshot may
// be nil when the authority held no claims for the principal yet.
func (s *Service) RecordMutation(ctx context.Context, principalID, actor string, action Action, before, after *claims.Record) (Entry, error) {
	if s.repo == nil {
		return Entry{}, fmt.Errorf("audit: repository not configured")
	}
	entry := Entry{
		ID:          uuid.New(),
		PrincipalID: principalID,
		Actor:       actor,
		Action:      action,
		Before:      before.AsMap(),
		After:       after.AsMap(),
		At:          s.clock(),
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return Entry{}, err
	}
	if s.logger != nil {
		s.logger.Info("claims mutation recorded",
			slog.String("principal", principalID),
			slog.String("actor", actor),
			slog.String("action", string(action)),
		)
	}
	return entry, nil
}

// Recent lists the newest entries, optionally scoped to one principal.
// Limits are clamped to 1..100 with a default of 20.
func (s *Service) Recent(ctx context.Context, principalID string, limit int) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.Recent(ctx, principalID, limit)
}
