// Package audit persists a durable trail of claims mutations: who changed
// which principal's authorization state, and what the state looked like on
// both sides of the change. The authority owns the claims themselves; this
// trail is local accountability, not a claims store.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action identifies the kind of claims mutation.
type Action string

const (
	ActionSet    Action = "set"
	ActionUpdate Action = "update"
	ActionRemove Action = "remove"
)

// Entry is one recorded mutation.
type Entry struct {
	ID          uuid.UUID
	PrincipalID string
	Actor       string
	Action      Action
	Before      map[string]any
	After       map[string]any
	At          time.Time
}
