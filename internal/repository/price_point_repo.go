package repository

import (
	"context"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 500

type PricePointRepository interface {
	ListByCard(ctx context.Context, cardID string) ([]model.PricePoint, error)
	ListByCardFinish(ctx context.Context, cardID, finish string) ([]model.PricePoint, error)
	// Upsert inserts points, replacing price, currency and as_of of rows that
	// already exist for the same (card_id, provider, finish, date).
	Upsert(ctx context.Context, points []model.PricePoint) error
}

type pricePointRepo struct{ db *gorm.DB }

func NewPricePointRepository(db *gorm.DB) PricePointRepository { return &pricePointRepo{db: db} }

func (r *pricePointRepo) ListByCard(ctx context.Context, cardID string) ([]model.PricePoint, error) {
	var points []model.PricePoint
	err := r.db.WithContext(ctx).Where("card_id = ?", cardID).Find(&points).Error
	return points, err
}

func (r *pricePointRepo) ListByCardFinish(ctx context.Context, cardID, finish string) ([]model.PricePoint, error) {
	var points []model.PricePoint
	err := r.db.WithContext(ctx).Where("card_id = ? AND finish = ?", cardID, finish).Find(&points).Error
	return points, err
}

func (r *pricePointRepo) Upsert(ctx context.Context, points []model.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "card_id"}, {Name: "provider"}, {Name: "finish"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"price_cent", "currency", "as_of"}),
	}).CreateInBatches(points, upsertBatchSize).Error
}
