package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cabinbook/cabinbook/services/booking-service/internal/identity"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/model"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/outbox"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/overrides"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/storage"
)

// Guard is the single authority deciding whether a reservation attempt
// succeeds, and the only writer of new booking rows. It performs no retries:
// every failure is terminal for the caller.
type Guard struct {
	store     storage.Store
	overrides *overrides.Store
	logger    *slog.Logger
	now       func() time.Time
}

func New(store storage.Store, overrideStore *overrides.Store, logger *slog.Logger) *Guard {
	return &Guard{store: store, overrides: overrideStore, logger: logger, now: time.Now}
}

// NewAt pins the clock for tests.
func NewAt(store storage.Store, overrideStore *overrides.Store, logger *slog.Logger, now func() time.Time) *Guard {
	return &Guard{store: store, overrides: overrideStore, logger: logger, now: now}
}

// Reserve attempts to book one slot for the professional at the given price
// snapshot. Preconditions are checked in order, short-circuiting on the
// first failure: cabin exists (ErrNotFound), actor is a professional
// (ErrUnauthorized), slot is offered (ErrSlotUnavailable: past day,
// pre-creation day, disabled shift, or manual closure). The final
// active-booking check and the insert execute as one atomic store call;
// a competing active booking surfaces as ErrConflict.
func (g *Guard) Reserve(ctx context.Context, actor identity.Principal, key model.SlotKey, price decimal.Decimal) (model.Booking, error) {
	cabin, err := g.store.GetCabin(ctx, key.CabinID)
	if err != nil {
		return model.Booking{}, err
	}
	if actor.ID == "" || !actor.IsProfessional() {
		return model.Booking{}, fmt.Errorf("%w: reserving requires a professional actor", model.ErrUnauthorized)
	}
	offered, err := g.overrides.Offered(ctx, cabin, key)
	if err != nil {
		return model.Booking{}, err
	}
	if !offered {
		return model.Booking{}, fmt.Errorf("%w: %s", model.ErrSlotUnavailable, key)
	}

	booking := model.Booking{
		ID:             uuid.NewString(),
		CabinID:        key.CabinID,
		ProfessionalID: actor.ID,
		Day:            key.Day,
		Shift:          key.Shift,
		Price:          price,
		Status:         model.BookingPaymentPending,
		CreatedAt:      g.now().UTC(),
	}

	evt, err := reservedEvent(booking)
	if err != nil {
		return model.Booking{}, err
	}
	if err := g.store.ReserveSlot(ctx, &booking, []outbox.Event{evt}); err != nil {
		return model.Booking{}, err
	}

	g.logger.Info("slot reserved",
		"booking_id", booking.ID,
		"cabin_id", booking.CabinID,
		"day", model.FormatDay(booking.Day),
		"shift", booking.Shift,
		"price", booking.Price,
	)
	return booking, nil
}

// Cancel transitions a booking to cancelled, immediately freeing its slot
// for new Reserve calls. Only the booking's professional or the cabin's
// owner may cancel; an already-cancelled booking is ErrInvalidState.
func (g *Guard) Cancel(ctx context.Context, actor identity.Principal, bookingID string) error {
	booking, err := g.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	cabin, err := g.store.GetCabin(ctx, booking.CabinID)
	if err != nil {
		return err
	}
	if actor.ID == "" || (actor.ID != booking.ProfessionalID && actor.ID != cabin.OwnerID) {
		return fmt.Errorf("%w: cancel requires the booking professional or the cabin owner", model.ErrUnauthorized)
	}
	if booking.Status == model.BookingCancelled {
		return fmt.Errorf("%w: booking %s is already cancelled", model.ErrInvalidState, bookingID)
	}

	cancelledAt := g.now().UTC()
	evt, err := cancelledEvent(booking, actor.ID, cancelledAt)
	if err != nil {
		return err
	}
	if err := g.store.CancelBooking(ctx, booking.ID, cancelledAt, []outbox.Event{evt}); err != nil {
		return err
	}

	g.logger.Info("booking cancelled",
		"booking_id", booking.ID,
		"cabin_id", booking.CabinID,
		"day", model.FormatDay(booking.Day),
		"shift", booking.Shift,
		"actor_id", actor.ID,
	)
	return nil
}

func reservedEvent(b model.Booking) (outbox.Event, error) {
	payload, err := json.Marshal(map[string]any{
		"booking_id":      b.ID,
		"cabin_id":        b.CabinID,
		"professional_id": b.ProfessionalID,
		"day":             model.FormatDay(b.Day),
		"shift":           string(b.Shift),
		"price":           b.Price.String(),
		"status":          string(b.Status),
		"created_at":      b.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     outbox.TopicSlotReserved,
		Payload:       payload,
	}, nil
}

func cancelledEvent(b model.Booking, actorID string, cancelledAt time.Time) (outbox.Event, error) {
	payload, err := json.Marshal(map[string]any{
		"booking_id":      b.ID,
		"cabin_id":        b.CabinID,
		"professional_id": b.ProfessionalID,
		"day":             model.FormatDay(b.Day),
		"shift":           string(b.Shift),
		"cancelled_by":    actorID,
		"cancelled_at":    cancelledAt.Format(time.RFC3339),
	})
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     outbox.TopicSlotCancelled,
		Payload:       payload,
	}, nil
}
