package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PricePoint is one provider's quote for a card/finish/date. Rows are
// immutable per natural identity (card_id, provider, finish, date); a newer
// feed for the same identity replaces price and as_of.
type PricePoint struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CardID    string    `gorm:"not null;uniqueIndex:idx_price_points_identity,priority:1"`
	Provider  string    `gorm:"not null;uniqueIndex:idx_price_points_identity,priority:2"`
	Finish    string    `gorm:"not null;uniqueIndex:idx_price_points_identity,priority:3"`
	Date      time.Time `gorm:"not null;uniqueIndex:idx_price_points_identity,priority:4"`
	Currency  string    `gorm:"not null;default:'EUR'"`
	PriceCent int64     `gorm:"not null"`
	AsOf      time.Time `gorm:"not null"`
}

func (p *PricePoint) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
