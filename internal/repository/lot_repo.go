package repository

import (
	"context"
	"errors"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LotIdentity selects the lots of one card variant: same finish and
// language, and either the same card id or the same fingerprint.
type LotIdentity struct {
	CardID      string
	Fingerprint string
	Finish      string
	Language    string
}

// LotPatch lists the mutable columns of a lot. Nil fields are left untouched.
type LotPatch struct {
	Quantity         *int
	UnitCostCent     *int64
	CostResidualCent *int64
	Condition        *string
}

func (p LotPatch) columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.Quantity != nil {
		cols["quantity"] = *p.Quantity
	}
	if p.UnitCostCent != nil {
		cols["unit_cost_cent"] = *p.UnitCostCent
	}
	if p.CostResidualCent != nil {
		cols["cost_residual_cent"] = *p.CostResidualCent
	}
	if p.Condition != nil {
		cols["condition"] = *p.Condition
	}
	return cols
}

// ErrNegativeQuantity is returned when a quantity change would take a lot
// below zero.
var ErrNegativeQuantity = errors.New("lot quantity cannot go below zero")

// LotRepository is the lot ledger. It filters on the columns it is given and
// never decides identity matches on its own.
type LotRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.CardLot, error)
	GetByCardID(ctx context.Context, cardID string) ([]model.CardLot, error)
	// Add stores the lot, assigns id and timestamps and returns the id.
	Add(ctx context.Context, lot *model.CardLot) (uuid.UUID, error)
	// Update applies patch and returns the number of rows changed.
	Update(ctx context.Context, id uuid.UUID, patch LotPatch) (int64, error)

	FindByIdentity(ctx context.Context, ident LotIdentity) ([]model.CardLot, error)
	// FindProvisional returns nil, nil when the identity has no provisional lot.
	FindProvisional(ctx context.Context, ident LotIdentity) (*model.CardLot, error)
	ListByAcquisition(ctx context.Context, acquisitionID uuid.UUID) ([]model.CardLot, error)
	// IncrementQuantity adds delta to the lot quantity; ErrNegativeQuantity
	// if the result would be negative.
	IncrementQuantity(ctx context.Context, id uuid.UUID, delta int) error
}

type lotRepo struct{ db *gorm.DB }

func NewLotRepository(db *gorm.DB) LotRepository { return &lotRepo{db: db} }

func (r *lotRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.CardLot, error) {
	var l model.CardLot
	if err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *lotRepo) GetByCardID(ctx context.Context, cardID string) ([]model.CardLot, error) {
	var lots []model.CardLot
	err := r.db.WithContext(ctx).Where("card_id = ?", cardID).
		Order("purchased_at ASC, id ASC").Find(&lots).Error
	return lots, err
}

func (r *lotRepo) Add(ctx context.Context, lot *model.CardLot) (uuid.UUID, error) {
	if err := r.db.WithContext(ctx).Create(lot).Error; err != nil {
		return uuid.Nil, err
	}
	return lot.ID, nil
}

func (r *lotRepo) Update(ctx context.Context, id uuid.UUID, patch LotPatch) (int64, error) {
	cols := patch.columns()
	if len(cols) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&model.CardLot{}).Where("id = ?", id).Updates(cols)
	return res.RowsAffected, res.Error
}

func (r *lotRepo) FindByIdentity(ctx context.Context, ident LotIdentity) ([]model.CardLot, error) {
	var lots []model.CardLot
	err := r.db.WithContext(ctx).
		Where("(card_id = ? OR fingerprint = ?) AND finish = ? AND language = ?",
			ident.CardID, ident.Fingerprint, ident.Finish, ident.Language).
		Order("purchased_at ASC, id ASC").
		Find(&lots).Error
	return lots, err
}

func (r *lotRepo) FindProvisional(ctx context.Context, ident LotIdentity) (*model.CardLot, error) {
	var l model.CardLot
	err := r.db.WithContext(ctx).
		Where("(card_id = ? OR fingerprint = ?) AND finish = ? AND language = ? AND source = ?",
			ident.CardID, ident.Fingerprint, ident.Finish, ident.Language, model.SourceProvisional).
		Order("created_at ASC, id ASC").
		Take(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *lotRepo) ListByAcquisition(ctx context.Context, acquisitionID uuid.UUID) ([]model.CardLot, error) {
	var lots []model.CardLot
	err := r.db.WithContext(ctx).Where("acquisition_id = ?", acquisitionID).
		Order("id ASC").Find(&lots).Error
	return lots, err
}

func (r *lotRepo) IncrementQuantity(ctx context.Context, id uuid.UUID, delta int) error {
	res := r.db.WithContext(ctx).Model(&model.CardLot{}).
		Where("id = ? AND quantity + ? >= 0", id, delta).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrNegativeQuantity
	}
	return nil
}
