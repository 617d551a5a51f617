package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cabinbook/cabinbook/services/booking-service/internal/identity"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/model"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/overrides"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/pricing"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/storage"
)

type CabinHandler struct {
	store     storage.Store
	overrides *overrides.Store
	pricing   *pricing.Resolver
	logger    *slog.Logger
	now       func() time.Time
}

func NewCabinHandler(store storage.Store, overrideStore *overrides.Store, resolver *pricing.Resolver, logger *slog.Logger) *CabinHandler {
	return &CabinHandler{store: store, overrides: overrideStore, pricing: resolver, logger: logger, now: time.Now}
}

type createCabinRequest struct {
	LocationID    string `json:"location_id"`
	Name          string `json:"name"`
	DefaultPrice  string `json:"default_price"`
	OpenMorning   *bool  `json:"open_morning"`
	OpenAfternoon *bool  `json:"open_afternoon"`
	OpenEvening   *bool  `json:"open_evening"`
}

type cabinResponse struct {
	CabinID       string `json:"cabin_id"`
	LocationID    string `json:"location_id"`
	OwnerID       string `json:"owner_id"`
	Name          string `json:"name"`
	DefaultPrice  string `json:"default_price"`
	OpenMorning   bool   `json:"open_morning"`
	OpenAfternoon bool   `json:"open_afternoon"`
	OpenEvening   bool   `json:"open_evening"`
	CreatedAt     string `json:"created_at"`
}

type closureRequest struct {
	CabinID string `json:"cabin_id"`
	Day     string `json:"day"`
	Shift   string `json:"shift"`
	Closed  bool   `json:"closed"`
}

type priceOverrideRequest struct {
	CabinID string `json:"cabin_id"`
	Day     string `json:"day"`
	Shift   string `json:"shift"`
	Price   string `json:"price"`
}

func cabinToResponse(c model.Cabin) cabinResponse {
	return cabinResponse{
		CabinID:       c.ID,
		LocationID:    c.LocationID,
		OwnerID:       c.OwnerID,
		Name:          c.Name,
		DefaultPrice:  c.DefaultPrice.String(),
		OpenMorning:   c.OpenMorning,
		OpenAfternoon: c.OpenAfternoon,
		OpenEvening:   c.OpenEvening,
		CreatedAt:     c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Create handles POST /v1/cabins. The authenticated owner becomes the
// cabin's owner; shifts default to open unless the request disables them.
func (h *CabinHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := identity.FromContext(r.Context())
	if !ok || !actor.IsOwner() {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "owner authentication required"})
		return
	}

	var req createCabinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.LocationID = strings.TrimSpace(req.LocationID)
	req.Name = strings.TrimSpace(req.Name)
	if req.LocationID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "location_id and name required"})
		return
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.DefaultPrice))
	if err != nil || price.LessThanOrEqual(decimal.Zero) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "default_price must be a positive decimal"})
		return
	}

	open := func(v *bool) bool { return v == nil || *v }
	cabin := model.Cabin{
		ID:            uuid.NewString(),
		LocationID:    req.LocationID,
		OwnerID:       actor.ID,
		Name:          req.Name,
		DefaultPrice:  price,
		OpenMorning:   open(req.OpenMorning),
		OpenAfternoon: open(req.OpenAfternoon),
		OpenEvening:   open(req.OpenEvening),
		CreatedAt:     h.now().UTC(),
	}
	if err := h.store.CreateCabin(r.Context(), &cabin); err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("cabin created", "cabin_id", cabin.ID, "location_id", cabin.LocationID, "owner_id", cabin.OwnerID)
	writeJSON(w, http.StatusCreated, cabinToResponse(cabin))
}

// Get handles GET /v1/cabins/{id}.
func (h *CabinHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "cabin id required"})
		return
	}
	cabin, err := h.store.GetCabin(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cabinToResponse(cabin))
}

// Closure handles POST /v1/cabins/closure: the owner closes or reopens a
// single slot. Repeating the same toggle is a no-op success.
func (h *CabinHandler) Closure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, _ := identity.FromContext(r.Context())

	var req closureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	key, err := parseSelection(slotSelection{CabinID: req.CabinID, Day: req.Day, Shift: req.Shift})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid slot selection"})
		return
	}

	if err := h.overrides.SetManualClosure(r.Context(), actor, key, req.Closed); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cabin_id": key.CabinID,
		"day":      model.FormatDay(key.Day),
		"shift":    string(key.Shift),
		"closed":   req.Closed,
	})
}

// Price handles POST /v1/cabins/price: the owner sets a per-slot price
// override superseding the cabin default.
func (h *CabinHandler) Price(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, _ := identity.FromContext(r.Context())

	var req priceOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	key, err := parseSelection(slotSelection{CabinID: req.CabinID, Day: req.Day, Shift: req.Shift})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid slot selection"})
		return
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "price must be a decimal"})
		return
	}

	if err := h.pricing.SetPriceOverride(r.Context(), actor, key, price); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cabin_id": key.CabinID,
		"day":      model.FormatDay(key.Day),
		"shift":    string(key.Shift),
		"price":    price.String(),
	})
}
