package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scan is a physical verification event. Immutable once recorded; its
// reconciliation is tracked separately in ScanMatch.
type Scan struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	CardID      string    `gorm:"not null;index"`
	Fingerprint string    `gorm:"not null;index"`
	SetCode     string
	Number      string
	Name        string
	Finish      string    `gorm:"not null"`
	Language    string    `gorm:"not null"`
	Quantity    int       `gorm:"not null"`
	ObservedAt  time.Time `gorm:"not null"`
	CreatedAt   time.Time
}

func (s *Scan) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// ScanMatch marks a scan as reconciled against a lot. One row per scan.
type ScanMatch struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	ScanID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	LotID         uuid.UUID `gorm:"type:uuid;not null;index"`
	QuantityAdded int       `gorm:"not null;default:0"`
	CreatedAt     time.Time
}

func (m *ScanMatch) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}
