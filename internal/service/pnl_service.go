package service

import (
	"context"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/dto"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/repository"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// PnLService computes the realised profit and loss of acquisitions.
type PnLService interface {
	GetAcquisitionPnL(ctx context.Context, acquisitionID uuid.UUID) (*dto.PnLResponse, error)
}

type pnlService struct {
	acquisitions repository.AcquisitionRepository
	lots         repository.LotRepository
	allocations  repository.AllocationRepository
	sales        repository.SaleRepository
	cache        *cache.Cache
}

// NewPnLService wires the calculator. c may be nil to disable caching.
func NewPnLService(
	acquisitions repository.AcquisitionRepository,
	lots repository.LotRepository,
	allocations repository.AllocationRepository,
	sales repository.SaleRepository,
	c *cache.Cache,
) PnLService {
	return &pnlService{acquisitions: acquisitions, lots: lots, allocations: allocations, sales: sales, cache: c}
}

func pnlCacheKey(id uuid.UUID) string { return "pnl:" + id.String() }

// GetAcquisitionPnL: cost is the allocated cost of the acquisition's lots,
// revenue the sale price of every unit allocated out of them.
func (s *pnlService) GetAcquisitionPnL(ctx context.Context, acquisitionID uuid.UUID) (*dto.PnLResponse, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(pnlCacheKey(acquisitionID)); ok {
			resp := v.(dto.PnLResponse)
			return &resp, nil
		}
	}

	acq, err := s.acquisitions.FindByID(ctx, acquisitionID)
	if err != nil {
		return nil, notFound(err, "acquisition", acquisitionID)
	}
	lots, err := s.lots.ListByAcquisition(ctx, acquisitionID)
	if err != nil {
		return nil, err
	}

	var cost int64
	lotIDs := make([]uuid.UUID, 0, len(lots))
	for i := range lots {
		cost += lots[i].CostCent()
		lotIDs = append(lotIDs, lots[i].ID)
	}

	allocs, err := s.allocations.ListByLots(ctx, lotIDs)
	if err != nil {
		return nil, err
	}
	txIDs := make([]uuid.UUID, 0, len(allocs))
	seen := make(map[uuid.UUID]struct{}, len(allocs))
	for _, a := range allocs {
		if _, ok := seen[a.TransactionID]; !ok {
			seen[a.TransactionID] = struct{}{}
			txIDs = append(txIDs, a.TransactionID)
		}
	}
	txs, err := s.sales.FindByIDs(ctx, txIDs)
	if err != nil {
		return nil, err
	}
	unitPrice := make(map[uuid.UUID]int64, len(txs))
	for _, t := range txs {
		unitPrice[t.ID] = t.PriceCent
	}

	var revenue int64
	for _, a := range allocs {
		revenue += unitPrice[a.TransactionID] * int64(a.Quantity)
	}

	resp := dto.PnLResponse{
		AcquisitionID: acquisitionID.String(),
		Currency:      acq.Currency,
		RevenueCent:   revenue,
		CostCent:      cost,
		ProfitCent:    revenue - cost,
	}
	if cost != 0 {
		margin := decimal.NewFromInt(resp.ProfitCent).
			Div(decimal.NewFromInt(cost)).
			Mul(decimal.NewFromInt(100)).
			Round(2)
		resp.MarginPct = &margin
	}

	if s.cache != nil {
		s.cache.SetDefault(pnlCacheKey(acquisitionID), resp)
	}
	return &resp, nil
}
