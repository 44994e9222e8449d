package repository

import (
	"context"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScanRepository stores scans and their reconciliation marks.
type ScanRepository interface {
	Create(ctx context.Context, s *model.Scan) error
	// ListUnmatched returns scans without a ScanMatch, oldest first. An empty
	// fingerprint lists every identity.
	ListUnmatched(ctx context.Context, fingerprint string) ([]model.Scan, error)
	CreateMatch(ctx context.Context, m *model.ScanMatch) error
	FindMatch(ctx context.Context, scanID uuid.UUID) (*model.ScanMatch, error)
}

type scanRepo struct{ db *gorm.DB }

func NewScanRepository(db *gorm.DB) ScanRepository { return &scanRepo{db: db} }

func (r *scanRepo) Create(ctx context.Context, s *model.Scan) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *scanRepo) ListUnmatched(ctx context.Context, fingerprint string) ([]model.Scan, error) {
	q := r.db.WithContext(ctx).Model(&model.Scan{}).
		Where("NOT EXISTS (SELECT 1 FROM scan_matches m WHERE m.scan_id = scans.id)")
	if fingerprint != "" {
		q = q.Where("fingerprint = ?", fingerprint)
	}
	var scans []model.Scan
	err := q.Order("observed_at ASC, created_at ASC, id ASC").Find(&scans).Error
	return scans, err
}

func (r *scanRepo) CreateMatch(ctx context.Context, m *model.ScanMatch) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *scanRepo) FindMatch(ctx context.Context, scanID uuid.UUID) (*model.ScanMatch, error) {
	var m model.ScanMatch
	if err := r.db.WithContext(ctx).First(&m, "scan_id = ?", scanID).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
