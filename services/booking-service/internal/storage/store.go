package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cabinbook/cabinbook/services/booking-service/internal/model"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/outbox"
)

// Store is the persistence contract the booking core depends on.
//
// The one hard requirement is ReserveSlot: the "no active booking for this
// SlotKey" check and the insert must execute as a single linearizable unit
// per SlotKey. Checking then inserting as two separate store calls is not an
// acceptable implementation.
type Store interface {
	CreateCabin(ctx context.Context, cabin *model.Cabin) error
	GetCabin(ctx context.Context, id string) (model.Cabin, error)

	// ReserveSlot atomically inserts the booking unless an active booking
	// already occupies its SlotKey, in which case it returns
	// model.ErrConflict. The events are recorded in the same atomic unit as
	// the insert.
	ReserveSlot(ctx context.Context, booking *model.Booking, events []outbox.Event) error
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	// CancelBooking transitions the booking to cancelled. It returns
	// model.ErrInvalidState if the booking is already cancelled and
	// model.ErrNotFound if it does not exist.
	CancelBooking(ctx context.Context, id string, cancelledAt time.Time, events []outbox.Event) error
	ActiveBooking(ctx context.Context, key model.SlotKey) (model.Booking, bool, error)
	ListActiveBookings(ctx context.Context, cabinID string, from, to time.Time) ([]model.Booking, error)
	ListBookingsByProfessional(ctx context.Context, professionalID string, from, to time.Time) ([]model.Booking, error)

	GetManualOverride(ctx context.Context, key model.SlotKey) (model.ManualOverride, bool, error)
	SetManualOverride(ctx context.Context, key model.SlotKey, closed bool) error
	ListManualOverrides(ctx context.Context, cabinID string, from, to time.Time) ([]model.ManualOverride, error)

	GetPriceOverride(ctx context.Context, key model.SlotKey) (model.PriceOverride, bool, error)
	SetPriceOverride(ctx context.Context, key model.SlotKey, price decimal.Decimal) error
	ListPriceOverrides(ctx context.Context, cabinID string, from, to time.Time) ([]model.PriceOverride, error)
}
