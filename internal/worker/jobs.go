package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/dto"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/identity"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReconcilePayload selects one identity; nil runs the full reconciler.
type ReconcilePayload struct {
	Identity *dto.CardAttributes `json:"identity,omitempty"`
}

type AllocatePayload struct {
	AcquisitionID string `json:"acquisition_id"`
	Method        string `json:"method,omitempty"`
}

// LedgerJobs holds the services background jobs call into.
type LedgerJobs struct {
	Reconciler service.ReconcilerService
	Allocator  service.CostAllocatorService
	Prices     service.PriceResolver
}

// Register wires every job type onto the pool.
func (j *LedgerJobs) Register(p *Pool) {
	p.Handle(JobPriceFeedImport, j.ImportPriceFeed)
	p.Handle(JobReconcile, j.Reconcile)
	p.Handle(JobAllocateCosts, j.AllocateCosts)
}

func (j *LedgerJobs) ImportPriceFeed(ctx context.Context, raw json.RawMessage) error {
	var upload dto.PriceFeedUpload
	if err := json.Unmarshal(raw, &upload); err != nil {
		return Permanent(fmt.Errorf("price feed payload: %w", err))
	}
	res, err := j.Prices.ImportFeed(ctx, upload.Rows)
	if err != nil {
		return classify(err)
	}
	log.Info().Int("imported", res.Imported).Int("cards", len(res.CardIDs)).Msg("price feed job finished")
	return nil
}

func (j *LedgerJobs) Reconcile(ctx context.Context, raw json.RawMessage) error {
	var payload ReconcilePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Permanent(fmt.Errorf("reconcile payload: %w", err))
	}
	var (
		report *dto.ReconcileReport
		err    error
	)
	if payload.Identity == nil {
		report, err = j.Reconciler.RunFullReconciler(ctx)
	} else {
		report, err = j.Reconciler.RunReconciler(ctx, identity.Normalize(payload.Identity.Input()))
	}
	if err != nil {
		return classify(err)
	}
	for _, f := range report.Failures {
		log.Warn().Str("event_id", f.EventID).Str("kind", f.Kind).Str("reason", f.Reason).
			Msg("event left outstanding")
	}
	return nil
}

func (j *LedgerJobs) AllocateCosts(ctx context.Context, raw json.RawMessage) error {
	var payload AllocatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Permanent(fmt.Errorf("allocate payload: %w", err))
	}
	id, err := uuid.Parse(payload.AcquisitionID)
	if err != nil {
		return Permanent(fmt.Errorf("acquisition id %q: %w", payload.AcquisitionID, err))
	}
	if _, err := j.Allocator.AllocateAcquisitionCosts(ctx, id, payload.Method); err != nil {
		return classify(err)
	}
	return nil
}

// classify marks caller-caused service errors as permanent; everything else
// is an infrastructure failure worth retrying.
func classify(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrAllocationMismatch),
		errors.Is(err, service.ErrInsufficientInventory):
		return Permanent(err)
	}
	return err
}
