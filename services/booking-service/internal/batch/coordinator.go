package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cabinbook/cabinbook/services/booking-service/internal/guard"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/identity"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/model"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/pricing"
)

// Status summarizes a batch outcome across its slot results.
type Status string

const (
	StatusAllSucceeded   Status = "all_succeeded"
	StatusPartialFailure Status = "partial_failure"
	StatusAllFailed      Status = "all_failed"
)

// SlotResult is the per-slot outcome. Exactly one of Booking and Err is set.
type SlotResult struct {
	Key     model.SlotKey
	Booking *model.Booking
	Err     error
}

// Result preserves the submission order of the selections.
type Result struct {
	Status  Status
	Results []SlotResult
}

// Coordinator processes a professional's multi-slot submission. Each slot is
// an independent reservation attempt: one slot failing never rolls back or
// blocks the others, and partial success is a normal outcome reported
// per slot.
type Coordinator struct {
	guard   *guard.Guard
	pricing *pricing.Resolver
	logger  *slog.Logger
}

func New(g *guard.Guard, p *pricing.Resolver, logger *slog.Logger) *Coordinator {
	return &Coordinator{guard: g, pricing: p, logger: logger}
}

// SubmitBatch resolves each selection's effective price at submission time
// and attempts the reservations in submission order. Duplicate selections in
// one batch are attempted as given; the second attempt fails on conflict.
func (c *Coordinator) SubmitBatch(ctx context.Context, actor identity.Principal, selections []model.SlotKey) (Result, error) {
	if len(selections) == 0 {
		return Result{}, fmt.Errorf("%w: batch must contain at least one slot", model.ErrInvalidArgument)
	}

	results := make([]SlotResult, 0, len(selections))
	succeeded := 0
	for _, key := range selections {
		res := SlotResult{Key: key}
		price, err := c.pricing.Resolve(ctx, key)
		if err != nil {
			res.Err = err
		} else if booking, err := c.guard.Reserve(ctx, actor, key, price); err != nil {
			res.Err = err
		} else {
			res.Booking = &booking
			succeeded++
		}
		results = append(results, res)
	}

	status := StatusPartialFailure
	switch succeeded {
	case len(results):
		status = StatusAllSucceeded
	case 0:
		status = StatusAllFailed
	}

	c.logger.Info("batch processed",
		"professional_id", actor.ID,
		"requested", len(selections),
		"succeeded", succeeded,
		"status", status,
	)
	return Result{Status: status, Results: results}, nil
}
