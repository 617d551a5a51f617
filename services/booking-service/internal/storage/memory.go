package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cabinbook/cabinbook/services/booking-service/internal/model"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/outbox"
)

// Memory is a single-process Store for tests and local development. A single
// mutex makes every call, ReserveSlot included, linearizable. It does NOT
// satisfy the uniqueness invariant across multiple processes; production
// deployments must use Postgres.
type Memory struct {
	mu       sync.Mutex
	cabins   map[string]model.Cabin
	bookings map[string]model.Booking
	active   map[model.SlotKey]string // booking id currently occupying the slot
	closures map[model.SlotKey]model.ManualOverride
	prices   map[model.SlotKey]model.PriceOverride
	events   []outbox.Event
}

func NewMemory() *Memory {
	return &Memory{
		cabins:   map[string]model.Cabin{},
		bookings: map[string]model.Booking{},
		active:   map[model.SlotKey]string{},
		closures: map[model.SlotKey]model.ManualOverride{},
		prices:   map[model.SlotKey]model.PriceOverride{},
	}
}

var _ Store = (*Memory)(nil)

func (s *Memory) CreateCabin(_ context.Context, cabin *model.Cabin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cabins[cabin.ID] = *cabin
	return nil
}

func (s *Memory) GetCabin(_ context.Context, id string) (model.Cabin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cabins[id]
	if !ok {
		return model.Cabin{}, model.ErrNotFound
	}
	return c, nil
}

func (s *Memory) ReserveSlot(_ context.Context, booking *model.Booking, events []outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := booking.SlotKey()
	if _, occupied := s.active[key]; occupied {
		return model.ErrConflict
	}
	s.bookings[booking.ID] = *booking
	s.active[key] = booking.ID
	s.events = append(s.events, events...)
	return nil
}

func (s *Memory) GetBooking(_ context.Context, id string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, model.ErrNotFound
	}
	return b, nil
}

func (s *Memory) CancelBooking(_ context.Context, id string, cancelledAt time.Time, events []outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return model.ErrNotFound
	}
	if b.Status == model.BookingCancelled {
		return model.ErrInvalidState
	}
	b.Status = model.BookingCancelled
	b.CancelledAt = &cancelledAt
	s.bookings[id] = b
	delete(s.active, b.SlotKey())
	s.events = append(s.events, events...)
	return nil
}

func (s *Memory) ActiveBooking(_ context.Context, key model.SlotKey) (model.Booking, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.active[key]
	if !ok {
		return model.Booking{}, false, nil
	}
	return s.bookings[id], true, nil
}

func (s *Memory) ListActiveBookings(_ context.Context, cabinID string, from, to time.Time) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Booking
	for _, id := range s.active {
		b := s.bookings[id]
		if b.CabinID == cabinID && !b.Day.Before(from) && !b.Day.After(to) {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (s *Memory) ListBookingsByProfessional(_ context.Context, professionalID string, from, to time.Time) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Booking
	for _, b := range s.bookings {
		if b.ProfessionalID == professionalID && !b.Day.Before(from) && !b.Day.After(to) {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (s *Memory) GetManualOverride(_ context.Context, key model.SlotKey) (model.ManualOverride, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.closures[key]
	return o, ok, nil
}

func (s *Memory) SetManualOverride(_ context.Context, key model.SlotKey, closed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closures[key] = model.ManualOverride{SlotKey: key, Closed: closed, UpdatedAt: time.Now().UTC()}
	return nil
}

func (s *Memory) ListManualOverrides(_ context.Context, cabinID string, from, to time.Time) ([]model.ManualOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.ManualOverride
	for key, o := range s.closures {
		if key.CabinID == cabinID && !key.Day.Before(from) && !key.Day.After(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Memory) GetPriceOverride(_ context.Context, key model.SlotKey) (model.PriceOverride, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.prices[key]
	return o, ok, nil
}

func (s *Memory) SetPriceOverride(_ context.Context, key model.SlotKey, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[key] = model.PriceOverride{SlotKey: key, Price: price, UpdatedAt: time.Now().UTC()}
	return nil
}

func (s *Memory) ListPriceOverrides(_ context.Context, cabinID string, from, to time.Time) ([]model.PriceOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.PriceOverride
	for key, o := range s.prices {
		if key.CabinID == cabinID && !key.Day.Before(from) && !key.Day.After(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

// Events returns a copy of all outbox events recorded so far.
func (s *Memory) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]outbox.Event, len(s.events))
	copy(out, s.events)
	return out
}

func sortBookings(bookings []model.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if !bookings[i].Day.Equal(bookings[j].Day) {
			return bookings[i].Day.Before(bookings[j].Day)
		}
		return bookings[i].Shift.Order() < bookings[j].Shift.Order()
	})
}
