package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lumina-lms/lumina-authz/internal/authority"
	"github.com/lumina-lms/lumina-authz/internal/claims"
	jobmetrics "github.com/lumina-lms/lumina-authz/internal/jobs"
)

// AuthorityReader is the slice of the authority client the probes need.
type AuthorityReader interface {
	GetClaims(ctx context.Context, principalID string) (*claims.Record, error)
	HealthCheck(ctx context.Context) error
}

// PropagationProbeJob polls the authority after a claims mutation and records
// how long the mutation took to become visible. It never touches user
// sessions; it exists so operators see the propagation latency distribution
// that the login-path synchronizer is absorbing.
type PropagationProbeJob struct {
	Authority AuthorityReader
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics

	Interval    time.Duration
	MaxAttempts int
	clock       func() time.Time
}

// NewPropagationProbeJob initialises the probe handler.
func NewPropagationProbeJob(client AuthorityReader, logger *slog.Logger, metrics *jobmetrics.Metrics) *PropagationProbeJob {
	return &PropagationProbeJob{
		Authority:   client,
		Logger:      logger,
		Metrics:     metrics,
		Interval:    100 * time.Millisecond,
		MaxAttempts: 50,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one probe.
func (j *PropagationProbeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Authority == nil {
		return errors.New("propagation probe: handler not configured")
	}
	var payload PropagationProbePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.PrincipalID == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskClaimsPropagationProbe)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("principal", payload.PrincipalID),
		slog.String("action", payload.Action),
	)

	start := j.clock()
	for attempt := 1; attempt <= j.MaxAttempts; attempt++ {
		rec, err := j.Authority.GetClaims(ctx, payload.PrincipalID)
		if err != nil && !errors.Is(err, authority.ErrNotFound) {
			resultErr = err
			logger.Error("probe read failed", slog.Any("error", err))
			return resultErr
		}
		if j.visible(payload, rec, err) {
			elapsed := j.clock().Sub(payload.MutatedAt)
			j.metrics().ObservePropagation("visible", elapsed)
			logger.Info("claims mutation visible",
				slog.Int("attempts", attempt),
				slog.Duration("elapsed", elapsed),
			)
			return nil
		}
		select {
		case <-ctx.Done():
			resultErr = ctx.Err()
			return resultErr
		case <-time.After(j.Interval):
		}
	}

	elapsed := j.clock().Sub(start)
	j.metrics().ObservePropagation("timed_out", elapsed)
	logger.Warn("claims mutation still not visible",
		slog.Int("attempts", j.MaxAttempts),
		slog.Duration("probe_window", elapsed),
	)
	return nil
}

// visible decides whether the authority already reflects the mutation. A
// removal is visible once the principal has no custom record; any other
// mutation once the authority's UpdatedAt reaches the mutation stamp.
func (j *PropagationProbeJob) visible(payload PropagationProbePayload, rec *claims.Record, err error) bool {
	if payload.Action == "remove" {
		return errors.Is(err, authority.ErrNotFound) || rec == nil || rec.Pending()
	}
	return rec != nil && !rec.UpdatedAt.Before(payload.MutatedAt)
}

func (j *PropagationProbeJob) metrics() *jobmetrics.Metrics {
	return j.Metrics
}

func (j *PropagationProbeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// AuthorityHealthJob checks the authority's liveness endpoint.
type AuthorityHealthJob struct {
	Authority AuthorityReader
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle executes one health probe.
func (j *AuthorityHealthJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Authority == nil {
		return errors.New("authority health probe: handler not configured")
	}
	tracker := j.Metrics.Track(TaskAuthorityHealthProbe)
	err := j.Authority.HealthCheck(ctx)
	if err != nil && j.Logger != nil {
		j.Logger.Error("authority health check failed", slog.Any("error", err))
	}
	return tracker.End(err)
}
