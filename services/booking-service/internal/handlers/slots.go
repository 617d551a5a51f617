package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cabinbook/cabinbook/services/booking-service/internal/model"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/slotgrid"
)

type SlotsHandler struct {
	grid   *slotgrid.Grid
	logger *slog.Logger
	now    func() time.Time
}

func NewSlotsHandler(grid *slotgrid.Grid, logger *slog.Logger) *SlotsHandler {
	return &SlotsHandler{grid: grid, logger: logger, now: time.Now}
}

type slotCell struct {
	Day       string `json:"day"`
	Shift     string `json:"shift"`
	Status    string `json:"status"`
	Price     string `json:"price"`
	BookingID string `json:"booking_id,omitempty"`
}

// Grid handles GET /v1/slots?cabin_id=...&from=...&to=... and returns the
// ordered availability grid for the range. The range defaults to the next
// two weeks starting today.
func (h *SlotsHandler) Grid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cabinID := strings.TrimSpace(r.URL.Query().Get("cabin_id"))
	if cabinID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "cabin_id required"})
		return
	}

	today := model.DayOf(h.now())
	from := today
	to := today.AddDate(0, 0, 13)
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
	// Keep the grid a UI-sized page, not an unbounded scan.
	if to.Sub(from) > 92*24*time.Hour {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "range must not exceed 92 days"})
		return
	}

	cells, err := h.grid.Build(r.Context(), cabinID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]slotCell, 0, len(cells))
	for _, c := range cells {
		items = append(items, slotCell{
			Day:       model.FormatDay(c.Key.Day),
			Shift:     string(c.Key.Shift),
			Status:    string(c.Status),
			Price:     c.Price.String(),
			BookingID: c.BookingID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cabin_id": cabinID,
		"from":     model.FormatDay(from),
		"to":       model.FormatDay(to),
		"slots":    items,
	})
}
