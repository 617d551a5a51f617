package overrides

import (
	"context"
	"fmt"
	"time"

	"github.com/cabinbook/cabinbook/services/booking-service/internal/identity"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/model"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/storage"
)

// Store tracks the owner's manual close/open decisions per slot, layered on
// top of the cabin's default per-shift availability and kept separate from
// booking occupancy: a booked slot's state is derived from its booking, not
// from an override.
type Store struct {
	store storage.Store
	now   func() time.Time
}

func New(store storage.Store) *Store {
	return &Store{store: store, now: time.Now}
}

// NewAt pins "today" for tests.
func NewAt(store storage.Store, now func() time.Time) *Store {
	return &Store{store: store, now: now}
}

// IsManuallyClosed is false unless the owner explicitly closed the slot.
func (s *Store) IsManuallyClosed(ctx context.Context, key model.SlotKey) (bool, error) {
	o, ok, err := s.store.GetManualOverride(ctx, key)
	if err != nil {
		return false, err
	}
	return ok && o.Closed, nil
}

// SetManualClosure records an owner decision to close or reopen a slot. It is
// idempotent. Closure is a pre-booking control surface only: a slot holding
// an active booking cannot be toggled through this path.
func (s *Store) SetManualClosure(ctx context.Context, actor identity.Principal, key model.SlotKey, closed bool) error {
	cabin, err := s.store.GetCabin(ctx, key.CabinID)
	if err != nil {
		return err
	}
	if !actor.IsOwner() || actor.ID != cabin.OwnerID {
		return fmt.Errorf("%w: only the cabin owner may close slots", model.ErrUnauthorized)
	}
	if key.Day.Before(model.DayOf(s.now())) {
		return fmt.Errorf("%w: cannot change closure for %s", model.ErrPastDate, model.FormatDay(key.Day))
	}
	if _, occupied, err := s.store.ActiveBooking(ctx, key); err != nil {
		return err
	} else if occupied {
		return fmt.Errorf("%w: slot %s has an active booking", model.ErrInvalidState, key)
	}
	return s.store.SetManualOverride(ctx, key, closed)
}

// Offered reports the pre-occupancy part of the bookable predicate: the day
// is today or later, not before the cabin's creation day, the shift is
// offered by default, and no manual closure applies. Booking occupancy is
// deliberately excluded; the store's atomic reserve is the authority there.
func (s *Store) Offered(ctx context.Context, cabin model.Cabin, key model.SlotKey) (bool, error) {
	if key.Day.Before(model.DayOf(s.now())) {
		return false, nil
	}
	if key.Day.Before(cabin.FirstBookableDay()) {
		return false, nil
	}
	if !cabin.ShiftOpen(key.Shift) {
		return false, nil
	}
	closed, err := s.IsManuallyClosed(ctx, key)
	if err != nil {
		return false, err
	}
	return !closed, nil
}

// Bookable is the full composite predicate, occupancy included. Used for
// rendering; Reserve relies on the store's atomic check instead.
func (s *Store) Bookable(ctx context.Context, cabin model.Cabin, key model.SlotKey) (bool, error) {
	offered, err := s.Offered(ctx, cabin, key)
	if err != nil || !offered {
		return false, err
	}
	_, occupied, err := s.store.ActiveBooking(ctx, key)
	if err != nil {
		return false, err
	}
	return !occupied, nil
}
