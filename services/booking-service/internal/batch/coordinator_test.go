package batch

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cabinbook/cabinbook/services/booking-service/internal/guard"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/identity"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/model"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/overrides"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/pricing"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/storage"
)

var testNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

var pro = identity.Principal{ID: "pro-1", Role: identity.RoleProfessional}

type fixture struct {
	coordinator *Coordinator
	store       *storage.Memory
	resolver    *pricing.Resolver
	overrides   *overrides.Store
	cabin       model.Cabin
}

func newFixture(t *testing.T) fixture {
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
		OpenEvening:   true,
		CreatedAt:     testNow.AddDate(0, -1, 0),
	}
	require.NoError(t, mem.CreateCabin(context.Background(), &cabin))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	overrideStore := overrides.NewAt(mem, fixedNow)
	resolver := pricing.NewResolverAt(mem, fixedNow)
	g := guard.NewAt(mem, overrideStore, logger, fixedNow)
	return fixture{
		coordinator: New(g, resolver, logger),
		store:       mem,
		resolver:    resolver,
		overrides:   overrideStore,
		cabin:       cabin,
	}
}

func TestSubmitBatchEmpty(t *testing.T) {
	f := newFixture(t)
	_, err := f.coordinator.SubmitBatch(context.Background(), pro, nil)
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestSubmitBatchAllSucceed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	day := testNow.AddDate(0, 0, 3)

	selections := []model.SlotKey{
		model.NewSlotKey(f.cabin.ID, day, model.ShiftMorning),
		model.NewSlotKey(f.cabin.ID, day, model.ShiftAfternoon),
		model.NewSlotKey(f.cabin.ID, day, model.ShiftEvening),
	}
	result, err := f.coordinator.SubmitBatch(ctx, pro, selections)
	require.NoError(t, err)
	require.Equal(t, StatusAllSucceeded, result.Status)
	require.Len(t, result.Results, 3)
	for i, res := range result.Results {
		require.Equal(t, selections[i], res.Key, "order must match submission")
		require.NoError(t, res.Err)
		require.NotNil(t, res.Booking)
		require.True(t, res.Booking.Price.Equal(f.cabin.DefaultPrice))
	}
}

func TestSubmitBatchPartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	day := testNow.AddDate(0, 0, 3)

	// A competitor takes the afternoon slot first.
	taken := model.NewSlotKey(f.cabin.ID, day, model.ShiftAfternoon)
	rival := identity.Principal{ID: "pro-2", Role: identity.RoleProfessional}
	prior, err := f.coordinator.SubmitBatch(ctx, rival, []model.SlotKey{taken})
	require.NoError(t, err)
	require.Equal(t, StatusAllSucceeded, prior.Status)

	selections := []model.SlotKey{
		model.NewSlotKey(f.cabin.ID, day, model.ShiftMorning),
		taken,
		model.NewSlotKey(f.cabin.ID, day, model.ShiftEvening),
	}
	result, err := f.coordinator.SubmitBatch(ctx, pro, selections)
	require.NoError(t, err)
	require.Equal(t, StatusPartialFailure, result.Status)

	require.NoError(t, result.Results[0].Err)
	require.ErrorIs(t, result.Results[1].Err, model.ErrConflict)
	require.NoError(t, result.Results[2].Err)

	// The failed middle slot did not poison its neighbors.
	morning, occupied, err := f.store.ActiveBooking(ctx, selections[0])
	require.NoError(t, err)
	require.True(t, occupied)
	require.Equal(t, pro.ID, morning.ProfessionalID)
}

func TestSubmitBatchIsolatesUnavailableSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := f.coordinator.SubmitBatch(ctx, pro, []model.SlotKey{
		model.NewSlotKey(f.cabin.ID, testNow.AddDate(0, 0, -2), model.ShiftMorning),
		model.NewSlotKey(f.cabin.ID, testNow.AddDate(0, 0, 4), model.ShiftEvening),
	})
	require.NoError(t, err)
	require.Equal(t, StatusPartialFailure, result.Status)
	require.ErrorIs(t, result.Results[0].Err, model.ErrSlotUnavailable)
	require.NoError(t, result.Results[1].Err)
	require.NotNil(t, result.Results[1].Booking)
}

func TestSubmitBatchAllFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	past := testNow.AddDate(0, 0, -2)

	result, err := f.coordinator.SubmitBatch(ctx, pro, []model.SlotKey{
		model.NewSlotKey(f.cabin.ID, past, model.ShiftMorning),
		model.NewSlotKey(f.cabin.ID, past, model.ShiftAfternoon),
	})
	require.NoError(t, err)
	require.Equal(t, StatusAllFailed, result.Status)
	for _, res := range result.Results {
		require.ErrorIs(t, res.Err, model.ErrSlotUnavailable)
	}
}

func TestSubmitBatchResubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	key := model.NewSlotKey(f.cabin.ID, testNow.AddDate(0, 0, 3), model.ShiftMorning)

	first, err := f.coordinator.SubmitBatch(ctx, pro, []model.SlotKey{key})
	require.NoError(t, err)
	require.Equal(t, StatusAllSucceeded, first.Status)

	// Resubmitting after an ambiguous timeout fails cleanly; the client then
	// consults their booking list to find the earlier reservation.
	second, err := f.coordinator.SubmitBatch(ctx, pro, []model.SlotKey{key})
	require.NoError(t, err)
	require.Equal(t, StatusAllFailed, second.Status)
	require.ErrorIs(t, second.Results[0].Err, model.ErrConflict)

	mine, err := f.store.ListBookingsByProfessional(ctx, pro.ID, key.Day, key.Day)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, first.Results[0].Booking.ID, mine[0].ID)
}

func TestSubmitBatchSnapshotsOverridePrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := identity.Principal{ID: "owner-1", Role: identity.RoleOwner}
	key := model.NewSlotKey(f.cabin.ID, testNow.AddDate(0, 0, 3), model.ShiftMorning)

	require.NoError(t, f.resolver.SetPriceOverride(ctx, owner, key, decimal.RequireFromString("80.00")))

	result, err := f.coordinator.SubmitBatch(ctx, pro, []model.SlotKey{key})
	require.NoError(t, err)
	require.Equal(t, StatusAllSucceeded, result.Status)
	require.True(t, result.Results[0].Booking.Price.Equal(decimal.RequireFromString("80.00")))

	// Later repricing never touches the existing booking.
	require.NoError(t, f.resolver.SetPriceOverride(ctx, owner, key, decimal.RequireFromString("95.00")))
	stored, err := f.store.GetBooking(ctx, result.Results[0].Booking.ID)
	require.NoError(t, err)
	require.True(t, stored.Price.Equal(decimal.RequireFromString("80.00")))
}

func TestSubmitBatchDuplicateSelections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	key := model.NewSlotKey(f.cabin.ID, testNow.AddDate(0, 0, 3), model.ShiftMorning)

	result, err := f.coordinator.SubmitBatch(ctx, pro, []model.SlotKey{key, key})
	require.NoError(t, err)
	require.Equal(t, StatusPartialFailure, result.Status)
	require.NoError(t, result.Results[0].Err)
	require.ErrorIs(t, result.Results[1].Err, model.ErrConflict)
}
