package slotgrid

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cabinbook/cabinbook/services/booking-service/internal/model"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/storage"
)

// ListSlots returns the ordered (day, shift) cells for the cabin within
// [from, to]: date ascending, then shift display order. Days strictly before
// the cabin's creation day are excluded regardless of the requested range.
// Pure function of its inputs.
func ListSlots(cabin model.Cabin, from, to time.Time) []model.SlotKey {
	from = model.DayOf(from)
	to = model.DayOf(to)
	if floor := cabin.FirstBookableDay(); from.Before(floor) {
		from = floor
	}

	var keys []model.SlotKey
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		for _, shift := range model.Shifts() {
			keys = append(keys, model.SlotKey{CabinID: cabin.ID, Day: day, Shift: shift})
		}
	}
	return keys
}

type CellStatus string

const (
	StatusOpen        CellStatus = "open"
	StatusBooked      CellStatus = "booked"
	StatusClosed      CellStatus = "closed"      // manual closure by the owner
	StatusUnavailable CellStatus = "unavailable" // shift not offered by default
	StatusPast        CellStatus = "past"
)

// Cell is one renderable grid entry. For booked cells Price is the booking's
// snapshot; otherwise it is the currently effective price for the slot.
type Cell struct {
	Key       model.SlotKey
	Status    CellStatus
	Price     decimal.Decimal
	BookingID string
}

// Grid composes overrides, price overrides, and active bookings into the
// cells the UI renders. It decides display status only; bookability is
// enforced by the conflict guard at reserve time.
type Grid struct {
	store storage.Store
	now   func() time.Time
}

func New(store storage.Store) *Grid {
	return &Grid{store: store, now: time.Now}
}

// NewAt pins "today" for tests.
func NewAt(store storage.Store, now func() time.Time) *Grid {
	return &Grid{store: store, now: now}
}

func (g *Grid) Build(ctx context.Context, cabinID string, from, to time.Time) ([]Cell, error) {
	cabin, err := g.store.GetCabin(ctx, cabinID)
	if err != nil {
		return nil, err
	}

	from = model.DayOf(from)
	to = model.DayOf(to)
	keys := ListSlots(cabin, from, to)
	if len(keys) == 0 {
		return nil, nil
	}

	closures, err := g.store.ListManualOverrides(ctx, cabinID, from, to)
	if err != nil {
		return nil, err
	}
	closedAt := make(map[model.SlotKey]bool, len(closures))
	for _, o := range closures {
		closedAt[o.SlotKey] = o.Closed
	}

	prices, err := g.store.ListPriceOverrides(ctx, cabinID, from, to)
	if err != nil {
		return nil, err
	}
	priceAt := make(map[model.SlotKey]decimal.Decimal, len(prices))
	for _, o := range prices {
		priceAt[o.SlotKey] = o.Price
	}

	bookings, err := g.store.ListActiveBookings(ctx, cabinID, from, to)
	if err != nil {
		return nil, err
	}
	bookedAt := make(map[model.SlotKey]model.Booking, len(bookings))
	for _, b := range bookings {
		bookedAt[b.SlotKey()] = b
	}

	today := model.DayOf(g.now())
	cells := make([]Cell, 0, len(keys))
	for _, key := range keys {
		cell := Cell{Key: key}

		if override, ok := priceAt[key]; ok {
			cell.Price = override
		} else {
			cell.Price = cabin.DefaultPrice
		}

		// Booked wins: a booked slot routes to booking details, never to an
		// open/close toggle, regardless of overrides.
		switch {
		case hasBooking(bookedAt, key):
			b := bookedAt[key]
			cell.Status = StatusBooked
			cell.BookingID = b.ID
			cell.Price = b.Price
		case key.Day.Before(today):
			cell.Status = StatusPast
		case !cabin.ShiftOpen(key.Shift):
			cell.Status = StatusUnavailable
		case closedAt[key]:
			cell.Status = StatusClosed
		default:
			cell.Status = StatusOpen
		}
		cells = append(cells, cell)
	}
	return cells, nil
}

func hasBooking(bookedAt map[model.SlotKey]model.Booking, key model.SlotKey) bool {
	_, ok := bookedAt[key]
	return ok
}
