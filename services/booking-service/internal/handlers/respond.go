package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cabinbook/cabinbook/services/booking-service/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError maps the core's sentinel errors onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		status = http.StatusBadRequest
		msg = err.Error()
	case errors.Is(err, model.ErrUnauthorized):
		status = http.StatusUnauthorized
		msg = err.Error()
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
		msg = err.Error()
	case errors.Is(err, model.ErrConflict), errors.Is(err, model.ErrInvalidState):
		status = http.StatusConflict
		msg = err.Error()
	case errors.Is(err, model.ErrSlotUnavailable), errors.Is(err, model.ErrPastDate):
		status = http.StatusUnprocessableEntity
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// errCode is the machine-readable kind used inside batch results, where a
// per-slot failure shares the response with successes.
func errCode(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, model.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrConflict):
		return "conflict"
	case errors.Is(err, model.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, model.ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, model.ErrPastDate):
		return "past_date"
	}
	return "internal"
}
