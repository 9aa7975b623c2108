// Package seating places guests at tables.  Seat choice is a pure function
// of the event id, the guest id and the table's free seats, so a retried
// request against an unchanged table always lands on the same seat.
package seating

import (
	"context"

	"github.com/cespare/xxhash/v2"

	"github.com/iliyamo/seating-planner/internal/audit"
	"github.com/iliyamo/seating-planner/internal/clock"
	"github.com/iliyamo/seating-planner/internal/lock"
	"github.com/iliyamo/seating-planner/internal/model"
	"github.com/iliyamo/seating-planner/internal/version"
)

// SeatResult is returned by Assign.
type SeatResult struct {
	TableID      string         `json:"table_id"`
	SeatNo       int            `json:"seat_no"`
	PreviousSeat *model.SeatRef `json:"previous_seat,omitempty"`
	Version      int64          `json:"version"`
}

// UnassignResult is returned by Unassign.
type UnassignResult struct {
	PreviousSeat *model.SeatRef `json:"previous_seat,omitempty"`
	Version      int64          `json:"version"`
}

type Engine struct {
	counter *version.Counter
	clock   clock.Clock
	audit   audit.Auditor
}

func NewEngine(counter *version.Counter, clk clock.Clock, aud audit.Auditor) *Engine {
	return &Engine{counter: counter, clock: clk, audit: aud}
}

// PickSeat returns the seat for guestID among free, which must be sorted
// ascending and non-empty.
func PickSeat(eventID, guestID string, free []int) int {
	d := xxhash.New()
	_, _ = d.WriteString(eventID)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(guestID)
	return free[d.Sum64()%uint64(len(free))]
}

// Assign seats guestID at tableID.  The guest's previous seat, wherever it
// is, is vacated in the same write.  If the guest already sits in the seat
// the hash picks, nothing is written and the current version is returned.
func (s *Engine) Assign(ctx context.Context, eventID, requester, guestID, tableID string, expected *int64) (SeatResult, error) {
	var out SeatResult
	guard := func(e model.Event) error { return lock.Authorize(e, requester, s.clock.Now()) }

	res, err := s.counter.Apply(ctx, eventID, expected, guard, func(e model.Event, plan *model.Plan) error {
		if _, ok := plan.Guest(guestID); !ok {
			return model.ErrGuestNotFound
		}
		table, ok := plan.Table(tableID)
		if !ok {
			return model.ErrTableNotFound
		}

		free := table.FreeSeats(guestID)
		if len(free) == 0 {
			return model.ErrTableFull
		}
		seat := PickSeat(eventID, guestID, free)
		out.TableID, out.SeatNo = tableID, seat

		if cur, ok := plan.SeatOf(guestID); ok && cur.TableID == tableID && cur.SeatNo == seat {
			return version.ErrUnchanged
		}

		if prev, ok := plan.Vacate(guestID); ok {
			out.PreviousSeat = &prev
		}
		table.Place(seat, guestID)
		return nil
	})
	if err != nil {
		return SeatResult{}, err
	}
	out.Version = res.Version
	if !res.Changed {
		out.PreviousSeat = nil
		return out, nil
	}

	details := map[string]any{"guest_id": guestID, "table_id": tableID, "seat_no": out.SeatNo}
	if out.PreviousSeat != nil {
		details["previous_table_id"] = out.PreviousSeat.TableID
		details["previous_seat_no"] = out.PreviousSeat.SeatNo
	}
	s.audit.Record(ctx, model.AuditEntry{
		EventID: eventID, UserID: requester, ActionType: model.ActionSeatAssign, Details: details,
	})
	return out, nil
}

// Unassign removes guestID from whatever seat it holds.  A guest without a
// seat is a no-op success.
func (s *Engine) Unassign(ctx context.Context, eventID, requester, guestID string, expected *int64) (UnassignResult, error) {
	var out UnassignResult
	guard := func(e model.Event) error { return lock.Authorize(e, requester, s.clock.Now()) }

	res, err := s.counter.Apply(ctx, eventID, expected, guard, func(e model.Event, plan *model.Plan) error {
		if _, ok := plan.Guest(guestID); !ok {
			return model.ErrGuestNotFound
		}
		prev, ok := plan.Vacate(guestID)
		if !ok {
			return version.ErrUnchanged
		}
		out.PreviousSeat = &prev
		return nil
	})
	if err != nil {
		return UnassignResult{}, err
	}
	out.Version = res.Version
	if res.Changed {
		s.audit.Record(ctx, model.AuditEntry{
			EventID: eventID, UserID: requester, ActionType: model.ActionSeatUnassign,
			Details: map[string]any{"guest_id": guestID, "table_id": out.PreviousSeat.TableID, "seat_no": out.PreviousSeat.SeatNo},
		})
	}
	return out, nil
}
