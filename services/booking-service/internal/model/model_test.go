package model

import (
	"errors"
	"testing"
	"time"
)

func TestParseShift(t *testing.T) {
	for _, s := range []string{"morning", "afternoon", "evening"} {
		shift, err := ParseShift(s)
		if err != nil {
			t.Fatalf("ParseShift(%q): %v", s, err)
		}
		if string(shift) != s {
			t.Fatalf("ParseShift(%q) = %q", s, shift)
		}
	}

	if _, err := ParseShift("night"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := ParseShift(""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty shift, got %v", err)
	}
}

func TestShiftOrder(t *testing.T) {
	if ShiftMorning.Order() >= ShiftAfternoon.Order() || ShiftAfternoon.Order() >= ShiftEvening.Order() {
		t.Fatalf("shift order broken: %d %d %d", ShiftMorning.Order(), ShiftAfternoon.Order(), ShiftEvening.Order())
	}
}

func TestDayOf(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	in := time.Date(2026, 9, 2, 3, 30, 0, 0, loc) // 2026-09-01 22:30 UTC
	got := DayOf(in)
	want := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("DayOf = %v, want %v", got, want)
	}
}

func TestParseDayRoundTrip(t *testing.T) {
	day, err := ParseDay("2026-09-15")
	if err != nil {
		t.Fatalf("ParseDay: %v", err)
	}
	if FormatDay(day) != "2026-09-15" {
		t.Fatalf("round trip = %q", FormatDay(day))
	}

	if _, err := ParseDay("15/09/2026"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSlotKeyString(t *testing.T) {
	day, _ := ParseDay("2026-09-15")
	key := NewSlotKey("cabin-1", day, ShiftMorning)
	if key.String() != "cabin-1/2026-09-15/morning" {
		t.Fatalf("String = %q", key.String())
	}
}

func TestBookingStatusActive(t *testing.T) {
	for _, s := range []BookingStatus{BookingPending, BookingPaymentPending, BookingConfirmed} {
		if !s.Active() {
			t.Fatalf("%s should be active", s)
		}
	}
	if BookingCancelled.Active() {
		t.Fatal("cancelled should not be active")
	}
}

func TestCabinShiftOpen(t *testing.T) {
	c := Cabin{OpenMorning: true, OpenEvening: true}
	if !c.ShiftOpen(ShiftMorning) || c.ShiftOpen(ShiftAfternoon) || !c.ShiftOpen(ShiftEvening) {
		t.Fatal("ShiftOpen does not reflect per-shift defaults")
	}
	if c.ShiftOpen(Shift("night")) {
		t.Fatal("unknown shift should not be open")
	}
}
