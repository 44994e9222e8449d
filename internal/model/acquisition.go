package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Allocation methods for distributing an acquisition's cost over its lots.
const (
	AllocationEqualPerCard         = "equal_per_card"
	AllocationProportionalToMarket = "proportional_to_market_value"
	AllocationManual               = "manual"
)

// Acquisition is a cost-bearing purchase batch grouping one or more lots.
type Acquisition struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name             string
	TotalCostCent    int64     `gorm:"not null"`
	Currency         string    `gorm:"not null;default:'EUR'"`
	AllocationMethod string    `gorm:"not null;default:'equal_per_card'"`
	AcquiredAt       time.Time `gorm:"not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (a *Acquisition) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// ValidAllocationMethod reports whether m is one of the supported methods.
func ValidAllocationMethod(m string) bool {
	switch m {
	case AllocationEqualPerCard, AllocationProportionalToMarket, AllocationManual:
		return true
	}
	return false
}
