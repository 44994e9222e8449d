package repository

import (
	"context"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SaleRepository stores immutable sell transactions.
type SaleRepository interface {
	Create(ctx context.Context, t *model.SellTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.SellTransaction, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.SellTransaction, error)
	// ListOutstanding returns sales whose allocations do not yet cover their
	// quantity, oldest first. An empty fingerprint lists every identity.
	ListOutstanding(ctx context.Context, fingerprint string) ([]model.SellTransaction, error)
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) Create(ctx context.Context, t *model.SellTransaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *saleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.SellTransaction, error) {
	var t model.SellTransaction
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *saleRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.SellTransaction, error) {
	var txs []model.SellTransaction
	if len(ids) == 0 {
		return txs, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&txs).Error
	return txs, err
}

func (r *saleRepo) ListOutstanding(ctx context.Context, fingerprint string) ([]model.SellTransaction, error) {
	q := r.db.WithContext(ctx).Model(&model.SellTransaction{}).
		Where(`quantity > (SELECT COALESCE(SUM(a.quantity), 0) FROM sell_allocations a
			WHERE a.transaction_id = sell_transactions.id)`)
	if fingerprint != "" {
		q = q.Where("fingerprint = ?", fingerprint)
	}
	var txs []model.SellTransaction
	err := q.Order("sold_at ASC, created_at ASC, id ASC").Find(&txs).Error
	return txs, err
}
