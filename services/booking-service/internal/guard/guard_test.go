package guard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cabinbook/cabinbook/services/booking-service/internal/identity"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/model"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/outbox"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/overrides"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/storage"
)

var testNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGuard(t *testing.T) (*Guard, *storage.Memory, model.Cabin) {
	t.Helper()
	mem := storage.NewMemory()
	cabin := model.Cabin{
		ID:            "cabin-1",
		LocationID:    "loc-1",
		OwnerID:       "owner-1",
		Name:          "Cabin One",
		DefaultPrice:  decimal.RequireFromString("50.00"),
		OpenMorning:   true,
		OpenAfternoon: true,
		OpenEvening:   false,
		CreatedAt:     testNow.AddDate(0, -1, 0),
	}
	if err := mem.CreateCabin(context.Background(), &cabin); err != nil {
		t.Fatalf("seed cabin: %v", err)
	}
	g := NewAt(mem, overrides.NewAt(mem, fixedNow), testLogger(), fixedNow)
	return g, mem, cabin
}

var pro = identity.Principal{ID: "pro-1", Role: identity.RoleProfessional}

func TestReserve(t *testing.T) {
	ctx := context.Background()
	g, mem, cabin := newGuard(t)
	key := model.NewSlotKey(cabin.ID, testNow.AddDate(0, 0, 3), model.ShiftMorning)
	price := decimal.RequireFromString("80.00")

	booking, err := g.Reserve(ctx, pro, key, price)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if booking.ID == "" {
		t.Fatal("booking id not assigned")
	}
	if booking.Status != model.BookingPaymentPending {
		t.Fatalf("status = %s", booking.Status)
	}
	if !booking.Price.Equal(price) {
		t.Fatalf("price = %s, want snapshot %s", booking.Price, price)
	}
	if booking.ProfessionalID != pro.ID || booking.SlotKey() != key {
		t.Fatalf("booking = %+v", booking)
	}

	events := mem.Events()
	if len(events) != 1 || events[0].EventType != outbox.TopicSlotReserved {
		t.Fatalf("events = %+v", events)
	}
}

func TestReservePreconditionOrder(t *testing.T) {
	ctx := context.Background()
	g, _, cabin := newGuard(t)
	price := cabin.DefaultPrice
	future := testNow.AddDate(0, 0, 3)

	// Unknown cabin wins over everything else.
	if _, err := g.Reserve(ctx, pro, model.NewSlotKey("nope", future, model.ShiftMorning), price); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown cabin: want ErrNotFound, got %v", err)
	}

	// Wrong role is rejected before the offered check: a past day with an
	// owner actor still reports ErrUnauthorized.
	owner := identity.Principal{ID: "owner-1", Role: identity.RoleOwner}
	pastKey := model.NewSlotKey(cabin.ID, testNow.AddDate(0, 0, -1), model.ShiftMorning)
	if _, err := g.Reserve(ctx, owner, pastKey, price); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("owner actor: want ErrUnauthorized, got %v", err)
	}
	if _, err := g.Reserve(ctx, identity.Principal{}, pastKey, price); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("anonymous: want ErrUnauthorized, got %v", err)
	}

	if _, err := g.Reserve(ctx, pro, pastKey, price); !errors.Is(err, model.ErrSlotUnavailable) {
		t.Fatalf("past day: want ErrSlotUnavailable, got %v", err)
	}
	disabled := model.NewSlotKey(cabin.ID, future, model.ShiftEvening)
	if _, err := g.Reserve(ctx, pro, disabled, price); !errors.Is(err, model.ErrSlotUnavailable) {
		t.Fatalf("disabled shift: want ErrSlotUnavailable, got %v", err)
	}
}

func TestReserveClosedSlot(t *testing.T) {
	ctx := context.Background()
	g, mem, cabin := newGuard(t)
	key := model.NewSlotKey(cabin.ID, testNow.AddDate(0, 0, 3), model.ShiftMorning)

	if err := mem.SetManualOverride(ctx, key, true); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := g.Reserve(ctx, pro, key, cabin.DefaultPrice); !errors.Is(err, model.ErrSlotUnavailable) {
		t.Fatalf("closed slot: want ErrSlotUnavailable, got %v", err)
	}
}

func TestReserveConflict(t *testing.T) {
	ctx := context.Background()
	g, _, cabin := newGuard(t)
	key := model.NewSlotKey(cabin.ID, testNow.AddDate(0, 0, 3), model.ShiftMorning)

	if _, err := g.Reserve(ctx, pro, key, cabin.DefaultPrice); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	other := identity.Principal{ID: "pro-2", Role: identity.RoleProfessional}
	if _, err := g.Reserve(ctx, other, key, cabin.DefaultPrice); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("second reserve: want ErrConflict, got %v", err)
	}
}

func TestReserveMutualExclusion(t *testing.T) {
	ctx := context.Background()
	g, _, cabin := newGuard(t)
	key := model.NewSlotKey(cabin.ID, testNow.AddDate(0, 0, 3), model.ShiftMorning)

	const n = 50
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := identity.Principal{ID: fmt.Sprintf("pro-%d", i), Role: identity.RoleProfessional}
			_, errs[i] = g.Reserve(ctx, actor, key, cabin.DefaultPrice)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, model.ErrConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d concurrent reservations succeeded, want exactly 1", succeeded)
	}
}

func TestCancelFreesSlot(t *testing.T) {
	ctx := context.Background()
	g, mem, cabin := newGuard(t)
	key := model.NewSlotKey(cabin.ID, testNow.AddDate(0, 0, 3), model.ShiftMorning)

	booking, err := g.Reserve(ctx, pro, key, cabin.DefaultPrice)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := g.Cancel(ctx, pro, booking.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, err := mem.GetBooking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.BookingCancelled || got.CancelledAt == nil {
		t.Fatalf("booking = %+v", got)
	}

	// The slot is immediately rebookable.
	other := identity.Principal{ID: "pro-2", Role: identity.RoleProfessional}
	if _, err := g.Reserve(ctx, other, key, cabin.DefaultPrice); err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}

	events := mem.Events()
	if len(events) != 3 {
		t.Fatalf("got %d events, want reserve+cancel+reserve", len(events))
	}
	if events[1].EventType != outbox.TopicSlotCancelled {
		t.Fatalf("second event = %s", events[1].EventType)
	}
}

func TestCancelAuthorization(t *testing.T) {
	ctx := context.Background()
	g, _, cabin := newGuard(t)
	key := model.NewSlotKey(cabin.ID, testNow.AddDate(0, 0, 3), model.ShiftMorning)

	booking, err := g.Reserve(ctx, pro, key, cabin.DefaultPrice)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := g.Cancel(ctx, identity.Principal{ID: "pro-2", Role: identity.RoleProfessional}, booking.ID); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("other professional: want ErrUnauthorized, got %v", err)
	}
	if err := g.Cancel(ctx, identity.Principal{ID: "owner-2", Role: identity.RoleOwner}, booking.ID); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("other owner: want ErrUnauthorized, got %v", err)
	}
	if err := g.Cancel(ctx, identity.Principal{}, booking.ID); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("anonymous: want ErrUnauthorized, got %v", err)
	}

	// The cabin owner may cancel any booking in their cabin.
	owner := identity.Principal{ID: "owner-1", Role: identity.RoleOwner}
	if err := g.Cancel(ctx, owner, booking.ID); err != nil {
		t.Fatalf("owner cancel: %v", err)
	}

	if err := g.Cancel(ctx, owner, booking.ID); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("double cancel: want ErrInvalidState, got %v", err)
	}
	if err := g.Cancel(ctx, owner, "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown booking: want ErrNotFound, got %v", err)
	}
}
