package model

import "errors"

// Terminal, caller-visible outcomes of the booking core. Handlers branch on
// these with errors.Is; the core never retries any of them.
//
// ErrSlotUnavailable and ErrConflict are expected steady-state outcomes under
// concurrent load and must stay distinguishable from the misuse errors
// (ErrNotFound, ErrUnauthorized, ErrInvalidArgument).
var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrSlotUnavailable = errors.New("slot unavailable")
	ErrConflict        = errors.New("slot already booked")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrPastDate        = errors.New("date is in the past")
	ErrInvalidState    = errors.New("invalid state")
)
