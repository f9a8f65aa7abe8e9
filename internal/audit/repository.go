package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-lms/lumina-authz/internal/platform/db"
)

// ErrDuplicateEntry indicates the entry id was already recorded.
var ErrDuplicateEntry = errors.New("audit: duplicate entry")

// retention bounds how far back the trail is kept. Entries older than this
// are pruned opportunistically on insert.
const retention = 180 * 24 * time.Hour

// Repository defines persistence operations for the audit trail.
type Repository interface {
	Insert(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, principalID string, limit int) ([]Entry, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert records one mutation.
func (r *PGRepository) Insert(ctx context.Context, entry Entry) error {
	before, err := marshalSnapshot(entry.Before)
	if err != nil {
		return fmt.Errorf("audit: encode before snapshot: %w", err)
	}
	after, err := marshalSnapshot(entry.After)
	if err != nil {
		return fmt.Errorf("audit: encode after snapshot: %w", err)
	}
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO claims_audit (id, principal_id, actor, action, before_claims, after_claims, at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, entry.ID, entry.PrincipalID, entry.Actor, string(entry.Action), before, after, entry.At.UTC())
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM claims_audit WHERE at < $1`, entry.At.UTC().Add(-retention))
		return err
	})
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return ErrDuplicateEntry
		}
		return err
	}
	return nil
}

// Recent returns the newest entries, optionally filtered by principal.
func (r *PGRepository) Recent(ctx context.Context, principalID string, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, principal_id, actor, action, before_claims, after_claims, at
FROM claims_audit
WHERE ($1 = '' OR principal_id = $1)
ORDER BY at DESC
LIMIT $2`, principalID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			entry  Entry
			action string
			before []byte
			after  []byte
			at     time.Time
		)
		if err := rows.Scan(&entry.ID, &entry.PrincipalID, &entry.Actor, &action, &before, &after, &at); err != nil {
			return nil, err
		}
		entry.Action = Action(action)
		entry.At = at
		if entry.Before, err = unmarshalSnapshot(before); err != nil {
			return nil, err
		}
		if entry.After, err = unmarshalSnapshot(after); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func marshalSnapshot(snapshot map[string]any) ([]byte, error) {
	if snapshot == nil {
		return []byte("null"), nil
	}
	return json.Marshal(snapshot)
}

func unmarshalSnapshot(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ Repository = (*PGRepository)(nil)
