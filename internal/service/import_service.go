package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/dto"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/identity"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/model"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/repository"

	"github.com/rs/zerolog/log"
)

// ImportService turns acquisition imports into purchase lots.
type ImportService interface {
	ImportAcquisition(ctx context.Context, req dto.AcquisitionImport) (*dto.AcquisitionResponse, error)
}

type importService struct {
	acquisitions    repository.AcquisitionRepository
	lots            repository.LotRepository
	allocator       CostAllocatorService
	reconciler      ReconcilerService
	defaultCurrency string
	now             func() time.Time
}

func NewImportService(
	acquisitions repository.AcquisitionRepository,
	lots repository.LotRepository,
	allocator CostAllocatorService,
	reconciler ReconcilerService,
	defaultCurrency string,
) ImportService {
	return &importService{
		acquisitions:    acquisitions,
		lots:            lots,
		allocator:       allocator,
		reconciler:      reconciler,
		defaultCurrency: defaultCurrency,
		now:             time.Now,
	}
}

// ImportAcquisition stores the acquisition and its lots, allocates the total
// cost with the acquisition's method and settles any sales or scans that were
// waiting for this stock.
func (s *importService) ImportAcquisition(ctx context.Context, req dto.AcquisitionImport) (*dto.AcquisitionResponse, error) {
	method := req.AllocationMethod
	if method == "" {
		method = model.AllocationEqualPerCard
	}
	if !model.ValidAllocationMethod(method) {
		return nil, fmt.Errorf("allocation method %q: %w", method, ErrInvalidInput)
	}
	if req.TotalCostCent < 0 {
		return nil, fmt.Errorf("total cost %d: %w", req.TotalCostCent, ErrInvalidInput)
	}

	var manualSum int64
	for i, row := range req.Lots {
		if row.Quantity < 1 || row.UnitCostCent < 0 {
			return nil, fmt.Errorf("lot %d: quantity %d, unit cost %d: %w", i, row.Quantity, row.UnitCostCent, ErrInvalidInput)
		}
		manualSum += row.UnitCostCent * int64(row.Quantity)
	}
	// Checked before anything is written so a mismatch leaves no acquisition behind.
	if method == model.AllocationManual && len(req.Lots) > 0 && manualSum != req.TotalCostCent {
		return nil, fmt.Errorf("lots carry %d, total is %d: %w", manualSum, req.TotalCostCent, ErrAllocationMismatch)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	acquiredAt := req.AcquiredAt.UTC()
	if req.AcquiredAt.IsZero() {
		acquiredAt = s.now().UTC()
	}

	acq := &model.Acquisition{
		Name:             strings.TrimSpace(req.Name),
		TotalCostCent:    req.TotalCostCent,
		Currency:         currency,
		AllocationMethod: method,
		AcquiredAt:       acquiredAt,
	}
	if err := s.acquisitions.Create(ctx, acq); err != nil {
		return nil, err
	}

	keys := make(map[string]identity.Key)
	for _, row := range req.Lots {
		key := identity.Normalize(row.Card.Input())
		lot := newLot(key, model.SourcePurchase, row.Quantity, acquiredAt)
		lot.AcquisitionID = &acq.ID
		lot.UnitCostCent = row.UnitCostCent
		if c := strings.TrimSpace(row.Condition); c != "" {
			lot.Condition = c
		}
		if _, err := s.lots.Add(ctx, lot); err != nil {
			return nil, fmt.Errorf("acquisition %s: %w", acq.ID, err)
		}
		keys[key.Fingerprint] = key
	}

	resp, err := s.allocator.AllocateAcquisitionCosts(ctx, acq.ID, method)
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		if _, err := s.reconciler.RunReconciler(ctx, key); err != nil {
			log.Warn().Err(err).Str("fingerprint", key.Fingerprint).Msg("reconcile after import failed")
		}
	}

	log.Info().
		Str("acquisition_id", acq.ID.String()).
		Int("lots", len(req.Lots)).
		Int64("total_cost_cent", acq.TotalCostCent).
		Msg("acquisition imported")
	return resp, nil
}
