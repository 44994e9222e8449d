package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SellAllocation records that Quantity units of a sell transaction were
// satisfied from one lot. Append-only: the sum of allocations per lot is the
// lot's depletion.
type SellAllocation struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	TransactionID uuid.UUID `gorm:"type:uuid;not null;index"`
	LotID         uuid.UUID `gorm:"type:uuid;not null;index"`
	Quantity      int       `gorm:"not null"`
	CreatedAt     time.Time
}

func (a *SellAllocation) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
