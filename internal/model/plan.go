package model

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/go-playground/validator/v10"
)

// Plan is the seating payload of an Event.  All invariants (seat numbers
// unique within a table, a guest in at most one seat) are aggregate-wide,
// so the plan is always read, validated and written as one unit.
type Plan struct {
	Tables   []Table         `json:"tables" validate:"dive"`
	Guests   []Guest         `json:"guests" validate:"dive"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

// Table is a physical table with a fixed number of seats.  Seats is a sparse
// list: a seat number that is missing or has an empty GuestID is free.
type Table struct {
	ID       string `json:"id" validate:"required,max=64"`
	Shape    string `json:"shape,omitempty" validate:"omitempty,max=32"`
	Capacity int    `json:"capacity" validate:"min=1,max=1000"`
	Seats    []Seat `json:"seats" validate:"dive"`
}

// Seat binds a seat number (1..capacity) to an optional guest.
type Seat struct {
	SeatNo  int    `json:"seat_no" validate:"min=1"`
	GuestID string `json:"guest_id,omitempty" validate:"omitempty,max=64"`
}

// Guest is an invitee that can be placed at most once in the plan.
type Guest struct {
	ID   string `json:"id" validate:"required,max=64"`
	Name string `json:"name" validate:"required,max=200"`
	Note string `json:"note,omitempty" validate:"omitempty,max=1000"`
	Tag  string `json:"tag,omitempty" validate:"omitempty,max=64"`
	RSVP string `json:"rsvp,omitempty" validate:"omitempty,max=32"`
}

// SeatRef locates an occupied seat.
type SeatRef struct {
	TableID string `json:"table_id"`
	SeatNo  int    `json:"seat_no"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the aggregate invariants.  The
// returned error wraps ErrInvalidArgument.
func (p Plan) Validate() error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return InvalidArgument("%s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return InvalidArgument("%v", err)
	}
	if len(p.Settings) > 0 && !json.Valid(p.Settings) {
		return InvalidArgument("settings is not valid JSON")
	}

	guests := make(map[string]struct{}, len(p.Guests))
	for _, g := range p.Guests {
		if _, dup := guests[g.ID]; dup {
			return InvalidArgument("duplicate guest id %q", g.ID)
		}
		guests[g.ID] = struct{}{}
	}

	tables := make(map[string]struct{}, len(p.Tables))
	seated := make(map[string]SeatRef)
	for _, t := range p.Tables {
		if _, dup := tables[t.ID]; dup {
			return InvalidArgument("duplicate table id %q", t.ID)
		}
		tables[t.ID] = struct{}{}

		numbers := make(map[int]struct{}, len(t.Seats))
		for _, s := range t.Seats {
			if s.SeatNo > t.Capacity {
				return InvalidArgument("table %q: seat %d exceeds capacity %d", t.ID, s.SeatNo, t.Capacity)
			}
			if _, dup := numbers[s.SeatNo]; dup {
				return InvalidArgument("table %q: duplicate seat %d", t.ID, s.SeatNo)
			}
			numbers[s.SeatNo] = struct{}{}
			if s.GuestID == "" {
				continue
			}
			if _, ok := guests[s.GuestID]; !ok {
				return InvalidArgument("table %q: seat %d references unknown guest %q", t.ID, s.SeatNo, s.GuestID)
			}
			if prev, twice := seated[s.GuestID]; twice {
				return InvalidArgument("guest %q seated twice (%s/%d and %s/%d)", s.GuestID, prev.TableID, prev.SeatNo, t.ID, s.SeatNo)
			}
			seated[s.GuestID] = SeatRef{TableID: t.ID, SeatNo: s.SeatNo}
		}
	}
	return nil
}

// Clone returns a deep copy that shares no memory with p.
func (p Plan) Clone() Plan {
	out := Plan{}
	if p.Tables != nil {
		out.Tables = make([]Table, len(p.Tables))
		for i, t := range p.Tables {
			out.Tables[i] = t
			if t.Seats != nil {
				out.Tables[i].Seats = append([]Seat(nil), t.Seats...)
			}
		}
	}
	if p.Guests != nil {
		out.Guests = append([]Guest(nil), p.Guests...)
	}
	if p.Settings != nil {
		out.Settings = append(json.RawMessage(nil), p.Settings...)
	}
	return out
}

// Guest looks a guest up by id.
func (p Plan) Guest(id string) (Guest, bool) {
	for _, g := range p.Guests {
		if g.ID == id {
			return g, true
		}
	}
	return Guest{}, false
}

// Table returns a pointer into p.Tables so callers can edit in place.
func (p *Plan) Table(id string) (*Table, bool) {
	for i := range p.Tables {
		if p.Tables[i].ID == id {
			return &p.Tables[i], true
		}
	}
	return nil, false
}

// SeatOf returns the first seat occupied by guestID.
func (p Plan) SeatOf(guestID string) (SeatRef, bool) {
	for _, t := range p.Tables {
		for _, s := range t.Seats {
			if s.GuestID == guestID {
				return SeatRef{TableID: t.ID, SeatNo: s.SeatNo}, true
			}
		}
	}
	return SeatRef{}, false
}

// Vacate clears every seat referencing guestID across all tables and
// returns the first one cleared.  The full scan enforces the one-seat rule
// even on plans that somehow violate it.
func (p *Plan) Vacate(guestID string) (SeatRef, bool) {
	var first SeatRef
	found := false
	for ti := range p.Tables {
		t := &p.Tables[ti]
		for si := range t.Seats {
			if t.Seats[si].GuestID != guestID {
				continue
			}
			if !found {
				first = SeatRef{TableID: t.ID, SeatNo: t.Seats[si].SeatNo}
				found = true
			}
			t.Seats[si].GuestID = ""
		}
	}
	return first, found
}

// FreeSeats lists, in ascending order, every seat number in 1..Capacity not
// occupied by a guest other than except.  Passing the guest being placed as
// except makes the result independent of where that guest currently sits.
func (t Table) FreeSeats(except string) []int {
	taken := make(map[int]struct{}, len(t.Seats))
	for _, s := range t.Seats {
		if s.GuestID != "" && s.GuestID != except {
			taken[s.SeatNo] = struct{}{}
		}
	}
	free := make([]int, 0, t.Capacity)
	for n := 1; n <= t.Capacity; n++ {
		if _, ok := taken[n]; !ok {
			free = append(free, n)
		}
	}
	return free
}

// Place writes guestID into seatNo, creating the sparse entry if needed.
func (t *Table) Place(seatNo int, guestID string) {
	for i := range t.Seats {
		if t.Seats[i].SeatNo == seatNo {
			t.Seats[i].GuestID = guestID
			return
		}
	}
	t.Seats = append(t.Seats, Seat{SeatNo: seatNo, GuestID: guestID})
	sort.Slice(t.Seats, func(i, j int) bool { return t.Seats[i].SeatNo < t.Seats[j].SeatNo })
}

// Resize changes the capacity and drops seats beyond it.  It returns the
// guests that lost their seat.
func (t *Table) Resize(capacity int) []string {
	var displaced []string
	kept := t.Seats[:0]
	for _, s := range t.Seats {
		if s.SeatNo > capacity {
			if s.GuestID != "" {
				displaced = append(displaced, s.GuestID)
			}
			continue
		}
		kept = append(kept, s)
	}
	t.Seats = kept
	t.Capacity = capacity
	return displaced
}
