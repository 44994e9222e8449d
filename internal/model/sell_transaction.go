package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SellTransaction is an immutable sale event. Its identity fields are the
// normalized ones; Fingerprint is computed once at ingestion.
type SellTransaction struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	CardID      string    `gorm:"not null;index"`
	Fingerprint string    `gorm:"not null;index"`
	SetCode     string
	Number      string
	Name        string
	Finish      string    `gorm:"not null"`
	Language    string    `gorm:"not null"`
	Quantity    int       `gorm:"not null"`
	PriceCent   int64     `gorm:"not null"` // per unit
	Currency    string    `gorm:"not null;default:'EUR'"`
	SoldAt      time.Time `gorm:"not null"`
	CreatedAt   time.Time
}

func (t *SellTransaction) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}
