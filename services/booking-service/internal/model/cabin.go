package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cabin is a bookable workspace unit belonging to a location. The owner of
// the location is the only actor allowed to mutate its overrides and prices.
type Cabin struct {
	ID            string
	LocationID    string
	OwnerID       string
	Name          string
	DefaultPrice  decimal.Decimal
	OpenMorning   bool
	OpenAfternoon bool
	OpenEvening   bool
	CreatedAt     time.Time
}

// ShiftOpen reports whether the cabin offers the shift at all. This is the
// owner's standing default, before manual closures and bookings apply.
func (c Cabin) ShiftOpen(s Shift) bool {
	switch s {
	case ShiftMorning:
		return c.OpenMorning
	case ShiftAfternoon:
		return c.OpenAfternoon
	case ShiftEvening:
		return c.OpenEvening
	}
	return false
}

// FirstBookableDay is the calendar day the cabin was created. Earlier days
// are never offered, regardless of other settings.
func (c Cabin) FirstBookableDay() time.Time {
	return DayOf(c.CreatedAt)
}

// ManualOverride is an owner decision to close (or reopen) one slot,
// independent of default availability and of booking occupancy.
type ManualOverride struct {
	SlotKey
	Closed    bool
	UpdatedAt time.Time
}

// PriceOverride supersedes the cabin default price for one exact slot.
type PriceOverride struct {
	SlotKey
	Price     decimal.Decimal
	UpdatedAt time.Time
}
