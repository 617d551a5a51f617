package model

import (
	"fmt"
	"time"
)

// Shift is one of the three fixed daily booking windows for a cabin.
type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
	ShiftEvening   Shift = "evening"
)

// Shifts returns the closed set of shifts in display order (morning first).
// The order matters for rendering only; booking carries no ordering rule.
func Shifts() []Shift {
	return []Shift{ShiftMorning, ShiftAfternoon, ShiftEvening}
}

func ParseShift(s string) (Shift, error) {
	switch Shift(s) {
	case ShiftMorning, ShiftAfternoon, ShiftEvening:
		return Shift(s), nil
	}
	return "", fmt.Errorf("%w: unknown shift %q", ErrInvalidArgument, s)
}

// Order is the display position of the shift within a day.
func (s Shift) Order() int {
	switch s {
	case ShiftMorning:
		return 0
	case ShiftAfternoon:
		return 1
	case ShiftEvening:
		return 2
	}
	return 3
}

// DayFormat is the wire format for calendar days.
const DayFormat = "2006-01-02"

// DayOf truncates t to its UTC calendar day. All Day fields in this package
// hold UTC midnight values.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDay(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DayFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid day %q", ErrInvalidArgument, s)
	}
	return d, nil
}

func FormatDay(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// SlotKey identifies one bookable unit: a cabin on a calendar day for one
// shift. It is the natural key for every conflict check in the system.
type SlotKey struct {
	CabinID string
	Day     time.Time
	Shift   Shift
}

func NewSlotKey(cabinID string, day time.Time, shift Shift) SlotKey {
	return SlotKey{CabinID: cabinID, Day: DayOf(day), Shift: shift}
}

func (k SlotKey) String() string {
	return k.CabinID + "/" + FormatDay(k.Day) + "/" + string(k.Shift)
}
