package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending        BookingStatus = "pending"
	BookingPaymentPending BookingStatus = "payment_pending"
	BookingConfirmed      BookingStatus = "confirmed"
	BookingCancelled      BookingStatus = "cancelled"
)

// Active reports whether the booking occupies its slot. Cancelled bookings
// free the slot and never count against the uniqueness invariant.
func (s BookingStatus) Active() bool {
	switch s {
	case BookingPending, BookingPaymentPending, BookingConfirmed:
		return true
	}
	return false
}

// Booking is a professional's reservation of one slot. Price is a snapshot
// taken at creation time and is never recomputed, even if the owner changes
// the slot's price override afterwards. Bookings are append-only: a booking
// transitions to cancelled, it is never deleted.
type Booking struct {
	ID             string
	CabinID        string
	ProfessionalID string
	Day            time.Time
	Shift          Shift
	Price          decimal.Decimal
	Status         BookingStatus
	CreatedAt      time.Time
	CancelledAt    *time.Time
}

func (b Booking) SlotKey() SlotKey {
	return SlotKey{CabinID: b.CabinID, Day: b.Day, Shift: b.Shift}
}
