package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cabinbook/cabinbook/services/booking-service/internal/identity"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/model"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/storage"
)

// Resolver computes the effective price for a slot: the exact-slot override
// when one exists, the cabin default otherwise. It never looks at booking
// price snapshots, so changing an override never reprices existing bookings.
type Resolver struct {
	store storage.Store
	now   func() time.Time
}

func NewResolver(store storage.Store) *Resolver {
	return &Resolver{store: store, now: time.Now}
}

// NewResolverAt pins "today" for tests.
func NewResolverAt(store storage.Store, now func() time.Time) *Resolver {
	return &Resolver{store: store, now: now}
}

func (r *Resolver) Resolve(ctx context.Context, key model.SlotKey) (decimal.Decimal, error) {
	if o, ok, err := r.store.GetPriceOverride(ctx, key); err != nil {
		return decimal.Decimal{}, err
	} else if ok {
		return o.Price, nil
	}
	cabin, err := r.store.GetCabin(ctx, key.CabinID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return cabin.DefaultPrice, nil
}

// ResolveForCabin is Resolve for callers that already hold the cabin row.
func (r *Resolver) ResolveForCabin(ctx context.Context, cabin model.Cabin, key model.SlotKey) (decimal.Decimal, error) {
	if o, ok, err := r.store.GetPriceOverride(ctx, key); err != nil {
		return decimal.Decimal{}, err
	} else if ok {
		return o.Price, nil
	}
	return cabin.DefaultPrice, nil
}

// SetPriceOverride upserts the price for one slot. Historical days cannot be
// repriced ("today" is still editable). Only the cabin owner may call this.
func (r *Resolver) SetPriceOverride(ctx context.Context, actor identity.Principal, key model.SlotKey, price decimal.Decimal) error {
	if price.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: price must be positive, got %s", model.ErrInvalidArgument, price)
	}
	if key.Day.Before(model.DayOf(r.now())) {
		return fmt.Errorf("%w: cannot reprice %s", model.ErrPastDate, model.FormatDay(key.Day))
	}
	cabin, err := r.store.GetCabin(ctx, key.CabinID)
	if err != nil {
		return err
	}
	if !actor.IsOwner() || actor.ID != cabin.OwnerID {
		return fmt.Errorf("%w: only the cabin owner may set prices", model.ErrUnauthorized)
	}
	return r.store.SetPriceOverride(ctx, key, price)
}
