// Package audit provides best-effort audit emission for the order scheduling
// core. Emitters never fail the surrounding operation: a sink error is logged
// and swallowed.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Entry is one audit record.
type Entry struct {
	Kind       string                 `json:"kind"`
	ActorID    *uuid.UUID             `json:"actor_id,omitempty"`
	OrderID    *uuid.UUID             `json:"order_id,omitempty"`
	TaskIDs    []uuid.UUID            `json:"task_ids,omitempty"`
	Detail     map[string]interface{} `json:"detail,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Emitter records audit entries. Implementations must be best-effort.
type Emitter interface {
	Emit(ctx context.Context, e Entry)
}

// LogEmitter writes audit entries as structured log events.
type LogEmitter struct {
	log zerolog.Logger
}

func NewLogEmitter(log zerolog.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

func (l *LogEmitter) Emit(_ context.Context, e Entry) {
	evt := l.log.Info().Str("kind", e.Kind).Time("occurred_at", e.OccurredAt)
	if e.ActorID != nil {
		evt = evt.Str("actor_id", e.ActorID.String())
	}
	if e.OrderID != nil {
		evt = evt.Str("order_id", e.OrderID.String())
	}
	if len(e.TaskIDs) > 0 {
		ids := make([]string, len(e.TaskIDs))
		for i, id := range e.TaskIDs {
			ids[i] = id.String()
		}
		evt = evt.Strs("task_ids", ids)
	}
	if e.Detail != nil {
		evt = evt.Interface("detail", e.Detail)
	}
	evt.Msg("audit")
}

// PGEmitter persists audit entries to the audit_entry table, falling back to
// the log on failure.
type PGEmitter struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPGEmitter(pool *pgxpool.Pool, log zerolog.Logger) *PGEmitter {
	return &PGEmitter{pool: pool, log: log}
}

func (p *PGEmitter) Emit(ctx context.Context, e Entry) {
	detail, err := json.Marshal(e)
	if err != nil {
		p.log.Warn().Err(err).Str("kind", e.Kind).Msg("audit entry not serializable")
		return
	}
	// Deliberately not enlisted in the caller's transaction: an audit failure
	// must never roll back the core operation.
	_, err = p.pool.Exec(ctx, `
		INSERT INTO audit_entry (id, kind, actor_id, order_id, detail, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		uuid.New(), e.Kind, e.ActorID, e.OrderID, detail, e.OccurredAt)
	if err != nil {
		p.log.Warn().Err(err).Str("kind", e.Kind).Msg("audit entry not persisted")
	}
}
