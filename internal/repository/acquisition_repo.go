package repository

import (
	"context"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AcquisitionRepository interface {
	Create(ctx context.Context, a *model.Acquisition) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Acquisition, error)
	UpdateMethod(ctx context.Context, id uuid.UUID, method string) error
}

type acquisitionRepo struct{ db *gorm.DB }

func NewAcquisitionRepository(db *gorm.DB) AcquisitionRepository {
	return &acquisitionRepo{db: db}
}

func (r *acquisitionRepo) Create(ctx context.Context, a *model.Acquisition) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *acquisitionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Acquisition, error) {
	var a model.Acquisition
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *acquisitionRepo) UpdateMethod(ctx context.Context, id uuid.UUID, method string) error {
	return r.db.WithContext(ctx).Model(&model.Acquisition{}).
		Where("id = ?", id).Update("allocation_method", method).Error
}
