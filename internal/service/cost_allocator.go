package service

import (
	"context"
	"fmt"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/dto"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/model"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/repository"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// CostAllocatorService spreads an acquisition's total cost over its lots.
type CostAllocatorService interface {
	// AllocateAcquisitionCosts writes unit costs with method, or with the
	// acquisition's stored method when method is empty.
	AllocateAcquisitionCosts(ctx context.Context, acquisitionID uuid.UUID, method string) (*dto.AcquisitionResponse, error)
}

type costAllocatorService struct {
	acquisitions repository.AcquisitionRepository
	lots         repository.LotRepository
	prices       PriceResolver
	pnlCache     *cache.Cache
}

// NewCostAllocatorService wires the allocator. pnlCache may be nil; when set
// the acquisition's cached P&L is evicted after every allocation.
func NewCostAllocatorService(
	acquisitions repository.AcquisitionRepository,
	lots repository.LotRepository,
	prices PriceResolver,
	pnlCache *cache.Cache,
) CostAllocatorService {
	return &costAllocatorService{acquisitions: acquisitions, lots: lots, prices: prices, pnlCache: pnlCache}
}

// lotCost is the computed cost split for one lot.
type lotCost struct {
	unit     int64
	residual int64
}

func (s *costAllocatorService) AllocateAcquisitionCosts(ctx context.Context, acquisitionID uuid.UUID, method string) (*dto.AcquisitionResponse, error) {
	acq, err := s.acquisitions.FindByID(ctx, acquisitionID)
	if err != nil {
		return nil, notFound(err, "acquisition", acquisitionID)
	}
	if method == "" {
		method = acq.AllocationMethod
	}
	if !model.ValidAllocationMethod(method) {
		return nil, fmt.Errorf("allocation method %q: %w", method, ErrInvalidInput)
	}

	lots, err := s.lots.ListByAcquisition(ctx, acquisitionID)
	if err != nil {
		return nil, err
	}

	var costs map[uuid.UUID]lotCost
	switch method {
	case model.AllocationEqualPerCard:
		costs = allocateEqual(acq.TotalCostCent, lots)
	case model.AllocationProportionalToMarket:
		costs, err = s.allocateProportional(ctx, acq, lots)
		if err != nil {
			return nil, err
		}
	case model.AllocationManual:
		var sum int64
		for i := range lots {
			sum += lots[i].CostCent()
		}
		if len(lots) > 0 && sum != acq.TotalCostCent {
			return nil, fmt.Errorf("acquisition %s: lots carry %d, total is %d: %w",
				acquisitionID, sum, acq.TotalCostCent, ErrAllocationMismatch)
		}
	}

	for i := range lots {
		c, ok := costs[lots[i].ID]
		if !ok {
			continue
		}
		unit, residual := c.unit, c.residual
		if _, err := s.lots.Update(ctx, lots[i].ID, repository.LotPatch{
			UnitCostCent:     &unit,
			CostResidualCent: &residual,
		}); err != nil {
			return nil, fmt.Errorf("updating lot %s: %w", lots[i].ID, err)
		}
		lots[i].UnitCostCent = unit
		lots[i].CostResidualCent = residual
	}

	if method != acq.AllocationMethod {
		if err := s.acquisitions.UpdateMethod(ctx, acquisitionID, method); err != nil {
			return nil, err
		}
		acq.AllocationMethod = method
	}
	if s.pnlCache != nil {
		s.pnlCache.Delete(pnlCacheKey(acquisitionID))
	}

	log.Info().
		Str("acquisition_id", acquisitionID.String()).
		Str("method", method).
		Int("lots", len(lots)).
		Msg("acquisition costs allocated")

	return acquisitionToResponse(acq, lots), nil
}

// allocateEqual gives every unit total/units cents. The remainder goes to the
// first lot (by id) whose quantity divides it; when none does, the first lot
// takes what divides and keeps the rest as its residual.
func allocateEqual(total int64, lots []model.CardLot) map[uuid.UUID]lotCost {
	var units int64
	for i := range lots {
		if lots[i].Quantity > 0 {
			units += int64(lots[i].Quantity)
		}
	}
	if units == 0 {
		return nil
	}
	unit := total / units
	r := total - unit*units

	costs := make(map[uuid.UUID]lotCost, len(lots))
	designated := -1
	for i := range lots {
		costs[lots[i].ID] = lotCost{unit: unit}
		if designated < 0 && lots[i].Quantity > 0 && r%int64(lots[i].Quantity) == 0 {
			designated = i
		}
	}
	if designated < 0 {
		for i := range lots {
			if lots[i].Quantity > 0 {
				designated = i
				break
			}
		}
	}
	q := int64(lots[designated].Quantity)
	costs[lots[designated].ID] = lotCost{unit: unit + r/q, residual: r % q}
	return costs
}

// allocateProportional weighs each lot by its market value and lets
// go-money hand out the total, leftover cents round robin.
func (s *costAllocatorService) allocateProportional(ctx context.Context, acq *model.Acquisition, lots []model.CardLot) (map[uuid.UUID]lotCost, error) {
	stocked := make([]model.CardLot, 0, len(lots))
	for i := range lots {
		if lots[i].Quantity > 0 {
			stocked = append(stocked, lots[i])
		}
	}
	if len(stocked) == 0 {
		return nil, nil
	}

	unitPrices := make([]int64, len(stocked))
	var pricedSum, pricedCount int64
	for i := range stocked {
		p, err := s.marketPrice(ctx, &stocked[i])
		if err != nil {
			return nil, err
		}
		unitPrices[i] = p
		if p > 0 {
			pricedSum += p
			pricedCount++
		}
	}
	fallback := int64(1)
	if pricedCount > 0 && pricedSum/pricedCount > 0 {
		fallback = pricedSum / pricedCount
	}

	weights := make([]int, len(stocked))
	for i := range stocked {
		p := unitPrices[i]
		if p <= 0 {
			p = fallback
		}
		weights[i] = int(p * int64(stocked[i].Quantity))
	}

	shares, err := money.New(acq.TotalCostCent, acq.Currency).Allocate(weights...)
	if err != nil {
		return nil, fmt.Errorf("splitting acquisition %s: %w", acq.ID, err)
	}

	costs := make(map[uuid.UUID]lotCost, len(stocked))
	for i := range stocked {
		share := shares[i].Amount()
		q := int64(stocked[i].Quantity)
		costs[stocked[i].ID] = lotCost{unit: share / q, residual: share % q}
	}
	return costs, nil
}

// marketPrice resolves a lot's per-unit market price, same finish first.
// Zero means unpriced.
func (s *costAllocatorService) marketPrice(ctx context.Context, lot *model.CardLot) (int64, error) {
	p, err := s.prices.GetLatestPriceForCardFinish(ctx, lot.CardID, lot.Finish)
	if err != nil {
		return 0, err
	}
	if p == nil || p.PriceCent <= 0 {
		p, err = s.prices.GetLatestPriceForCard(ctx, lot.CardID)
		if err != nil {
			return 0, err
		}
	}
	if p == nil || p.PriceCent <= 0 {
		return 0, nil
	}
	return p.PriceCent, nil
}
