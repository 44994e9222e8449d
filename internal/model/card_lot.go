package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Finish values persisted on lots, events and price points.
const (
	FinishFoil    = "foil"
	FinishNonfoil = "nonfoil"
	FinishEtched  = "etched"
)

// Lot sources.
const (
	SourcePurchase    = "purchase"
	SourceProvisional = "provisional"
	SourceAdjustment  = "adjustment"
)

// DefaultCondition is assigned to lots created without an explicit grade.
const DefaultCondition = "Near Mint"

// CardLot is a quantity-bearing holding of one card variant.
// Lots are never deleted. Sales deplete them through SellAllocation rows,
// the quantity column itself only grows (scans, imports, adjustments).
type CardLot struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	CardID      string    `gorm:"not null;index:idx_card_lots_identity,priority:1"`
	Fingerprint string    `gorm:"not null;index"`
	SetCode     string
	Number      string
	Name        string
	Finish      string `gorm:"not null;default:'nonfoil';index:idx_card_lots_identity,priority:2"` // foil | nonfoil | etched
	Language    string `gorm:"not null;default:'EN';index:idx_card_lots_identity,priority:3"`
	Quantity    int    `gorm:"not null;default:0"`

	// UnitCostCent is the allocated cost per unit; CostResidualCent holds the
	// cents of an acquisition that could not be spread evenly over the units
	// (always < Quantity).
	UnitCostCent     int64      `gorm:"not null;default:0"`
	CostResidualCent int64      `gorm:"not null;default:0"`
	Condition        string     `gorm:"not null;default:'Near Mint'"`
	Foil             bool       `gorm:"not null;default:false"`
	Source           string     `gorm:"not null;index"` // purchase | provisional | adjustment
	PurchasedAt      time.Time  `gorm:"not null"`
	AcquisitionID    *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (l *CardLot) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

// CostCent is the total cost carried by the lot.
func (l *CardLot) CostCent() int64 {
	return l.UnitCostCent*int64(l.Quantity) + l.CostResidualCent
}

// IsFoilFinish keeps the foil flag consistent with the finish enum.
func IsFoilFinish(finish string) bool { return finish != FinishNonfoil }
