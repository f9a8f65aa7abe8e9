// Package jobs defines the background task surface: task types, payloads,
// and the Asynq worker that runs them.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskClaimsPropagationProbe measures how long a claims mutation takes
	// to become visible at the authority.
	TaskClaimsPropagationProbe = "claims:propagation_probe"
	// TaskAuthorityHealthProbe periodically checks authority liveness.
	TaskAuthorityHealthProbe = "claims:authority_health"
)

// PropagationProbePayload identifies the mutation whose visibility the probe
// tracks. MutatedAt is the stamp written by the mutation; the probe considers
// the mutation visible once the authority reports an UpdatedAt at or after
// it.
type PropagationProbePayload struct {
	PrincipalID string    `json:"principal_id"`
	Action      string    `json:"action"`
	MutatedAt   time.Time `json:"mutated_at"`
}

// NewPropagationProbeTask constructs the probe task for a mutation.
func NewPropagationProbeTask(payload PropagationProbePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskClaimsPropagationProbe, data), nil
}

// NewAuthorityHealthTask constructs the recurring health probe task.
func NewAuthorityHealthTask() *asynq.Task {
	return asynq.NewTask(TaskAuthorityHealthProbe, nil)
}
