package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cabinbook/cabinbook/services/booking-service/internal/batch"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/guard"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/identity"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/model"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/storage"
)

type BookingHandler struct {
	coordinator *batch.Coordinator
	guard       *guard.Guard
	store       storage.Store
	logger      *slog.Logger
	now         func() time.Time
}

func NewBookingHandler(coordinator *batch.Coordinator, g *guard.Guard, store storage.Store, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{coordinator: coordinator, guard: g, store: store, logger: logger, now: time.Now}
}

type slotSelection struct {
	CabinID string `json:"cabin_id"`
	Day     string `json:"day"`
	Shift   string `json:"shift"`
}

type batchRequest struct {
	Slots []slotSelection `json:"slots"`
}

type slotResultItem struct {
	CabinID   string `json:"cabin_id"`
	Day       string `json:"day"`
	Shift     string `json:"shift"`
	BookingID string `json:"booking_id,omitempty"`
	Price     string `json:"price,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

type batchResponse struct {
	Status  string           `json:"status"`
	Results []slotResultItem `json:"results"`
}

type cancelBookingRequest struct {
	BookingID string `json:"booking_id"`
}

type cancelBookingResponse struct {
	BookingID   string `json:"booking_id"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at"`
}

type bookingItem struct {
	BookingID   string `json:"booking_id"`
	CabinID     string `json:"cabin_id"`
	Day         string `json:"day"`
	Shift       string `json:"shift"`
	Price       string `json:"price"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	CancelledAt string `json:"cancelled_at,omitempty"`
}

func parseSelection(sel slotSelection) (model.SlotKey, error) {
	cabinID := strings.TrimSpace(sel.CabinID)
	if cabinID == "" {
		return model.SlotKey{}, model.ErrInvalidArgument
	}
	day, err := model.ParseDay(strings.TrimSpace(sel.Day))
	if err != nil {
		return model.SlotKey{}, err
	}
	shift, err := model.ParseShift(strings.TrimSpace(sel.Shift))
	if err != nil {
		return model.SlotKey{}, err
	}
	return model.SlotKey{CabinID: cabinID, Day: day, Shift: shift}, nil
}

// Batch handles POST /v1/bookings/batch. The batch as a whole always answers
// 200 once it parses: per-slot failures are reported inside the body, never
// as a top-level HTTP error.
func (h *BookingHandler) Batch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, _ := identity.FromContext(r.Context())

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if len(req.Slots) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "slots must contain at least one selection"})
		return
	}

	selections := make([]model.SlotKey, 0, len(req.Slots))
	for _, sel := range req.Slots {
		key, err := parseSelection(sel)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid slot selection"})
			return
		}
		selections = append(selections, key)
	}

	result, err := h.coordinator.SubmitBatch(r.Context(), actor, selections)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]slotResultItem, 0, len(result.Results))
	for _, res := range result.Results {
		item := slotResultItem{
			CabinID: res.Key.CabinID,
			Day:     model.FormatDay(res.Key.Day),
			Shift:   string(res.Key.Shift),
		}
		if res.Err != nil {
			item.Error = res.Err.Error()
			item.ErrorCode = errCode(res.Err)
		} else {
			item.BookingID = res.Booking.ID
			item.Price = res.Booking.Price.String()
			item.Status = string(res.Booking.Status)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, batchResponse{Status: string(result.Status), Results: items})
}

// Cancel handles POST /v1/bookings/cancel.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, _ := identity.FromContext(r.Context())

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "booking_id required"})
		return
	}

	if err := h.guard.Cancel(r.Context(), actor, req.BookingID); err != nil {
		writeError(w, err)
		return
	}
	booking, err := h.store.GetBooking(r.Context(), req.BookingID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := cancelBookingResponse{BookingID: booking.ID, Status: string(booking.Status)}
	if booking.CancelledAt != nil {
		resp.CancelledAt = booking.CancelledAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// List handles GET /v1/bookings: by default the authenticated professional's
// bookings within an optional [from, to] day range; with ?cabin_id= the cabin
// owner's view of that cabin's active bookings instead.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := identity.FromContext(r.Context())
	if !ok || actor.ID == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	today := model.DayOf(h.now())
	from := today.AddDate(0, -1, 0)
	to := today.AddDate(0, 3, 0)
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		day, err := model.ParseDay(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid from date"})
			return
		}
		from = day
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		day, err := model.ParseDay(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid to date"})
			return
		}
		to = day
	}
	if to.Before(from) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "to must not precede from"})
		return
	}

	var (
		bookings []model.Booking
		err      error
	)
	if cabinID := strings.TrimSpace(r.URL.Query().Get("cabin_id")); cabinID != "" {
		cabin, cabErr := h.store.GetCabin(r.Context(), cabinID)
		if cabErr != nil {
			writeError(w, cabErr)
			return
		}
		if !actor.IsOwner() || actor.ID != cabin.OwnerID {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "only the cabin owner may list its bookings"})
			return
		}
		bookings, err = h.store.ListActiveBookings(r.Context(), cabinID, from, to)
	} else {
		bookings, err = h.store.ListBookingsByProfessional(r.Context(), actor.ID, from, to)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		item := bookingItem{
			BookingID: b.ID,
			CabinID:   b.CabinID,
			Day:       model.FormatDay(b.Day),
			Shift:     string(b.Shift),
			Price:     b.Price.String(),
			Status:    string(b.Status),
			CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
		}
		if b.CancelledAt != nil {
			item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}
