package overrides

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cabinbook/cabinbook/services/booking-service/internal/identity"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/model"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/storage"
)

var testNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func seedCabin(t *testing.T, store storage.Store, morning, afternoon, evening bool) model.Cabin {
	t.Helper()
	cabin := model.Cabin{
		ID:            "cabin-1",
		LocationID:    "loc-1",
		OwnerID:       "owner-1",
		Name:          "Cabin One",
		DefaultPrice:  decimal.RequireFromString("50.00"),
		OpenMorning:   morning,
		OpenAfternoon: afternoon,
		OpenEvening:   evening,
		CreatedAt:     testNow.AddDate(0, -1, 0),
	}
	if err := store.CreateCabin(context.Background(), &cabin); err != nil {
		t.Fatalf("seed cabin: %v", err)
	}
	return cabin
}

func TestSetManualClosureToggle(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	cabin := seedCabin(t, mem, true, true, true)
	s := NewAt(mem, fixedNow)
	owner := identity.Principal{ID: "owner-1", Role: identity.RoleOwner}
	key := model.NewSlotKey(cabin.ID, testNow.AddDate(0, 0, 3), model.ShiftMorning)

	if closed, _ := s.IsManuallyClosed(ctx, key); closed {
		t.Fatal("slot closed before any override")
	}

	if err := s.SetManualClosure(ctx, owner, key, true); err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed, _ := s.IsManuallyClosed(ctx, key); !closed {
		t.Fatal("slot not closed")
	}

	// Closing an already-closed slot is a no-op success.
	if err := s.SetManualClosure(ctx, owner, key, true); err != nil {
		t.Fatalf("idempotent close: %v", err)
	}

	if err := s.SetManualClosure(ctx, owner, key, false); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if closed, _ := s.IsManuallyClosed(ctx, key); closed {
		t.Fatal("slot still closed after reopen")
	}
}

func TestSetManualClosureGuards(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	cabin := seedCabin(t, mem, true, true, true)
	s := NewAt(mem, fixedNow)
	owner := identity.Principal{ID: "owner-1", Role: identity.RoleOwner}
	key := model.NewSlotKey(cabin.ID, testNow.AddDate(0, 0, 3), model.ShiftMorning)

	unknown := model.NewSlotKey("nope", key.Day, key.Shift)
	if err := s.SetManualClosure(ctx, owner, unknown, true); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown cabin: want ErrNotFound, got %v", err)
	}

	stranger := identity.Principal{ID: "owner-2", Role: identity.RoleOwner}
	if err := s.SetManualClosure(ctx, stranger, key, true); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("other owner: want ErrUnauthorized, got %v", err)
	}
	pro := identity.Principal{ID: "pro-1", Role: identity.RoleProfessional}
	if err := s.SetManualClosure(ctx, pro, key, true); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("professional: want ErrUnauthorized, got %v", err)
	}

	past := model.NewSlotKey(cabin.ID, testNow.AddDate(0, 0, -1), model.ShiftMorning)
	if err := s.SetManualClosure(ctx, owner, past, true); !errors.Is(err, model.ErrPastDate) {
		t.Fatalf("past day: want ErrPastDate, got %v", err)
	}

	booking := model.Booking{
		ID: "b1", CabinID: cabin.ID, ProfessionalID: "pro-1",
		Day: key.Day, Shift: key.Shift,
		Price: cabin.DefaultPrice, Status: model.BookingConfirmed, CreatedAt: testNow,
	}
	if err := mem.ReserveSlot(ctx, &booking, nil); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := s.SetManualClosure(ctx, owner, key, true); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("occupied slot: want ErrInvalidState, got %v", err)
	}
}

func TestOffered(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	cabin := seedCabin(t, mem, true, false, true)
	s := NewAt(mem, fixedNow)
	owner := identity.Principal{ID: "owner-1", Role: identity.RoleOwner}
	future := testNow.AddDate(0, 0, 3)

	check := func(key model.SlotKey, want bool, label string) {
		t.Helper()
		got, err := s.Offered(ctx, cabin, key)
		if err != nil {
			t.Fatalf("%s: %v", label, err)
		}
		if got != want {
			t.Fatalf("%s: offered=%v, want %v", label, got, want)
		}
	}

	check(model.NewSlotKey(cabin.ID, future, model.ShiftMorning), true, "open shift")
	check(model.NewSlotKey(cabin.ID, future, model.ShiftAfternoon), false, "disabled shift")
	check(model.NewSlotKey(cabin.ID, testNow.AddDate(0, 0, -1), model.ShiftMorning), false, "past day")
	check(model.NewSlotKey(cabin.ID, testNow, model.ShiftMorning), true, "today")
	check(model.NewSlotKey(cabin.ID, cabin.CreatedAt.AddDate(0, 0, -1), model.ShiftMorning), false, "before creation")

	closedKey := model.NewSlotKey(cabin.ID, future, model.ShiftEvening)
	if err := s.SetManualClosure(ctx, owner, closedKey, true); err != nil {
		t.Fatalf("close: %v", err)
	}
	check(closedKey, false, "manually closed")

	// Occupancy does not affect Offered, only Bookable.
	bookedKey := model.NewSlotKey(cabin.ID, future, model.ShiftMorning)
	booking := model.Booking{
		ID: "b1", CabinID: cabin.ID, ProfessionalID: "pro-1",
		Day: bookedKey.Day, Shift: bookedKey.Shift,
		Price: cabin.DefaultPrice, Status: model.BookingConfirmed, CreatedAt: testNow,
	}
	if err := mem.ReserveSlot(ctx, &booking, nil); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	check(bookedKey, true, "booked slot still offered")

	bookable, err := s.Bookable(ctx, cabin, bookedKey)
	if err != nil {
		t.Fatalf("bookable: %v", err)
	}
	if bookable {
		t.Fatal("booked slot reported bookable")
	}
}
