package repository

import (
	"context"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AllocationRepository stores sell allocations. Append-only.
type AllocationRepository interface {
	Create(ctx context.Context, a *model.SellAllocation) error
	SumByLot(ctx context.Context, lotID uuid.UUID) (int, error)
	SumByLots(ctx context.Context, lotIDs []uuid.UUID) (map[uuid.UUID]int, error)
	SumByTransaction(ctx context.Context, transactionID uuid.UUID) (int, error)
	ListByLots(ctx context.Context, lotIDs []uuid.UUID) ([]model.SellAllocation, error)
}

type allocationRepo struct{ db *gorm.DB }

func NewAllocationRepository(db *gorm.DB) AllocationRepository { return &allocationRepo{db: db} }

func (r *allocationRepo) Create(ctx context.Context, a *model.SellAllocation) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *allocationRepo) SumByLot(ctx context.Context, lotID uuid.UUID) (int, error) {
	var sum int64
	err := r.db.WithContext(ctx).Model(&model.SellAllocation{}).
		Where("lot_id = ?", lotID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&sum).Error
	return int(sum), err
}

func (r *allocationRepo) SumByLots(ctx context.Context, lotIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	sums := make(map[uuid.UUID]int, len(lotIDs))
	if len(lotIDs) == 0 {
		return sums, nil
	}
	var rows []struct {
		LotID uuid.UUID
		Total int64
	}
	err := r.db.WithContext(ctx).Model(&model.SellAllocation{}).
		Select("lot_id, COALESCE(SUM(quantity), 0) AS total").
		Where("lot_id IN ?", lotIDs).
		Group("lot_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		sums[row.LotID] = int(row.Total)
	}
	return sums, nil
}

func (r *allocationRepo) SumByTransaction(ctx context.Context, transactionID uuid.UUID) (int, error) {
	var sum int64
	err := r.db.WithContext(ctx).Model(&model.SellAllocation{}).
		Where("transaction_id = ?", transactionID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&sum).Error
	return int(sum), err
}

func (r *allocationRepo) ListByLots(ctx context.Context, lotIDs []uuid.UUID) ([]model.SellAllocation, error) {
	var allocs []model.SellAllocation
	if len(lotIDs) == 0 {
		return allocs, nil
	}
	err := r.db.WithContext(ctx).Where("lot_id IN ?", lotIDs).
		Order("created_at ASC, id ASC").Find(&allocs).Error
	return allocs, err
}
