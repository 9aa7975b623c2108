// Package audit records accepted operations.  Recording is observational:
// failures are logged and never reach the operation being described.
package audit

import (
	"context"
	"time"

	"github.com/iliyamo/seating-planner/internal/clock"
	"github.com/iliyamo/seating-planner/internal/logging"
	"github.com/iliyamo/seating-planner/internal/model"
	"github.com/iliyamo/seating-planner/internal/queue"
)

// Auditor is what engine components depend on.
type Auditor interface {
	Record(ctx context.Context, e model.AuditEntry)
}

// Store appends audit rows.
type Store interface {
	InsertAudit(ctx context.Context, e model.AuditEntry) error
}

// Publisher forwards audit events to the broker.
type Publisher interface {
	PublishAuditEvent(ctx context.Context, ev queue.AuditEvent) error
}

const publishTimeout = 2 * time.Second

// Recorder writes each entry to the store and then publishes it.  Either
// sink may be nil.
type Recorder struct {
	store Store
	pub   Publisher
	clock clock.Clock
	log   logging.Logger
}

func NewRecorder(store Store, pub Publisher, clk clock.Clock, log logging.Logger) *Recorder {
	return &Recorder{store: store, pub: pub, clock: clk, log: log.With("component", "audit")}
}

// Record stamps CreatedAt when unset and fans the entry out.
func (r *Recorder) Record(ctx context.Context, e model.AuditEntry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.clock.Now()
	}
	ctx = context.WithoutCancel(ctx)

	if r.store != nil {
		if err := r.store.InsertAudit(ctx, e); err != nil {
			r.log.Warn(ctx, "audit insert failed", "event_id", e.EventID, "action", e.ActionType, "error", err)
		}
	}
	if r.pub != nil {
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		ev := queue.AuditEvent{
			EventID:    e.EventID,
			UserID:     e.UserID,
			ActionType: e.ActionType,
			Details:    e.Details,
			OccurredAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := r.pub.PublishAuditEvent(pctx, ev); err != nil {
			r.log.Warn(ctx, "audit publish failed", "event_id", e.EventID, "action", e.ActionType, "error", err)
		}
	}
}

// Nop drops every entry.
type Nop struct{}

func (Nop) Record(context.Context, model.AuditEntry) {}
