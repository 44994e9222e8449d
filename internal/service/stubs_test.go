package service_test

import (
	"context"
	"sort"
	"time"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/model"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ── In-memory ledger shared by the stub repositories ─────────────────────────

type memLedger struct {
	lots         []*model.CardLot
	allocations  []model.SellAllocation
	sales        []model.SellTransaction
	scans        []model.Scan
	matches      []model.ScanMatch
	acquisitions map[uuid.UUID]*model.Acquisition
	points       []model.PricePoint
}

func newMemLedger() *memLedger {
	return &memLedger{acquisitions: make(map[uuid.UUID]*model.Acquisition)}
}

func (m *memLedger) lotRepo() *stubLotRepo { return &stubLotRepo{m} }
func (m *memLedger) allocationRepo() *stubAllocationRepo { return &stubAllocationRepo{m} }
func (m *memLedger) saleRepo() *stubSaleRepo { return &stubSaleRepo{m} }
func (m *memLedger) scanRepo() *stubScanRepo { return &stubScanRepo{m} }
func (m *memLedger) acquisitionRepo() *stubAcquisitionRepo { return &stubAcquisitionRepo{m} }
func (m *memLedger) pricePointRepo() *stubPricePointRepo { return &stubPricePointRepo{m} }

func (m *memLedger) allocatedFromLot(id uuid.UUID) int {
	n := 0
	for _, a := range m.allocations {
		if a.LotID == id {
			n += a.Quantity
		}
	}
	return n
}

func (m *memLedger) allocatedToSale(id uuid.UUID) int {
	n := 0
	for _, a := range m.allocations {
		if a.TransactionID == id {
			n += a.Quantity
		}
	}
	return n
}

func newID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// ── LotRepository ─────────────────────────────────────────────────────────────

type stubLotRepo struct{ *memLedger }

var _ repository.LotRepository = (*stubLotRepo)(nil)

func matchesIdentity(l *model.CardLot, ident repository.LotIdentity) bool {
	return (l.CardID == ident.CardID || l.Fingerprint == ident.Fingerprint) &&
		l.Finish == ident.Finish && l.Language == ident.Language
}

func (r *stubLotRepo) GetByID(_ context.Context, id uuid.UUID) (*model.CardLot, error) {
	for _, l := range r.lots {
		if l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubLotRepo) GetByCardID(_ context.Context, cardID string) ([]model.CardLot, error) {
	var out []model.CardLot
	for _, l := range r.lots {
		if l.CardID == cardID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *stubLotRepo) Add(_ context.Context, lot *model.CardLot) (uuid.UUID, error) {
	newID(&lot.ID)
	lot.CreatedAt = time.Now()
	lot.UpdatedAt = lot.CreatedAt
	cp := *lot
	r.lots = append(r.lots, &cp)
	return lot.ID, nil
}

func (r *stubLotRepo) Update(_ context.Context, id uuid.UUID, patch repository.LotPatch) (int64, error) {
	for _, l := range r.lots {
		if l.ID != id {
			continue
		}
		if patch.Quantity != nil {
			l.Quantity = *patch.Quantity
		}
		if patch.UnitCostCent != nil {
			l.UnitCostCent = *patch.UnitCostCent
		}
		if patch.CostResidualCent != nil {
			l.CostResidualCent = *patch.CostResidualCent
		}
		if patch.Condition != nil {
			l.Condition = *patch.Condition
		}
		l.UpdatedAt = time.Now()
		return 1, nil
	}
	return 0, nil
}

func (r *stubLotRepo) FindByIdentity(_ context.Context, ident repository.LotIdentity) ([]model.CardLot, error) {
	var out []model.CardLot
	for _, l := range r.lots {
		if matchesIdentity(l, ident) {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *stubLotRepo) FindProvisional(_ context.Context, ident repository.LotIdentity) (*model.CardLot, error) {
	for _, l := range r.lots {
		if l.Source == model.SourceProvisional && matchesIdentity(l, ident) {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *stubLotRepo) ListByAcquisition(_ context.Context, acquisitionID uuid.UUID) ([]model.CardLot, error) {
	var out []model.CardLot
	for _, l := range r.lots {
		if l.AcquisitionID != nil && *l.AcquisitionID == acquisitionID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *stubLotRepo) IncrementQuantity(_ context.Context, id uuid.UUID, delta int) error {
	for _, l := range r.lots {
		if l.ID == id {
			if l.Quantity+delta < 0 {
				return repository.ErrNegativeQuantity
			}
			l.Quantity += delta
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── AllocationRepository ──────────────────────────────────────────────────────

type stubAllocationRepo struct{ *memLedger }

var _ repository.AllocationRepository = (*stubAllocationRepo)(nil)

func (r *stubAllocationRepo) Create(_ context.Context, a *model.SellAllocation) error {
	newID(&a.ID)
	a.CreatedAt = time.Now()
	r.allocations = append(r.allocations, *a)
	return nil
}

func (r *stubAllocationRepo) SumByLot(_ context.Context, lotID uuid.UUID) (int, error) {
	return r.allocatedFromLot(lotID), nil
}

func (r *stubAllocationRepo) SumByLots(_ context.Context, lotIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(lotIDs))
	for _, id := range lotIDs {
		if n := r.allocatedFromLot(id); n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

func (r *stubAllocationRepo) SumByTransaction(_ context.Context, transactionID uuid.UUID) (int, error) {
	return r.allocatedToSale(transactionID), nil
}

func (r *stubAllocationRepo) ListByLots(_ context.Context, lotIDs []uuid.UUID) ([]model.SellAllocation, error) {
	want := make(map[uuid.UUID]bool, len(lotIDs))
	for _, id := range lotIDs {
		want[id] = true
	}
	var out []model.SellAllocation
	for _, a := range r.allocations {
		if want[a.LotID] {
			out = append(out, a)
		}
	}
	return out, nil
}

// ── SaleRepository ────────────────────────────────────────────────────────────

type stubSaleRepo struct{ *memLedger }

var _ repository.SaleRepository = (*stubSaleRepo)(nil)

func (r *stubSaleRepo) Create(_ context.Context, t *model.SellTransaction) error {
	newID(&t.ID)
	t.CreatedAt = time.Now()
	r.sales = append(r.sales, *t)
	return nil
}

func (r *stubSaleRepo) FindByID(_ context.Context, id uuid.UUID) (*model.SellTransaction, error) {
	for i := range r.sales {
		if r.sales[i].ID == id {
			cp := r.sales[i]
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubSaleRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]model.SellTransaction, error) {
	var out []model.SellTransaction
	for _, id := range ids {
		if t, err := r.FindByID(context.Background(), id); err == nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *stubSaleRepo) ListOutstanding(_ context.Context, fingerprint string) ([]model.SellTransaction, error) {
	var out []model.SellTransaction
	for _, t := range r.sales {
		if fingerprint != "" && t.Fingerprint != fingerprint {
			continue
		}
		if r.allocatedToSale(t.ID) < t.Quantity {
			out = append(out, t)
		}
	}
	return out, nil
}

// ── ScanRepository ────────────────────────────────────────────────────────────

type stubScanRepo struct{ *memLedger }

var _ repository.ScanRepository = (*stubScanRepo)(nil)

func (r *stubScanRepo) Create(_ context.Context, s *model.Scan) error {
	newID(&s.ID)
	s.CreatedAt = time.Now()
	r.scans = append(r.scans, *s)
	return nil
}

func (r *stubScanRepo) ListUnmatched(_ context.Context, fingerprint string) ([]model.Scan, error) {
	var out []model.Scan
	for _, s := range r.scans {
		if fingerprint != "" && s.Fingerprint != fingerprint {
			continue
		}
		if _, err := r.FindMatch(context.Background(), s.ID); err != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubScanRepo) CreateMatch(_ context.Context, m *model.ScanMatch) error {
	for _, existing := range r.matches {
		if existing.ScanID == m.ScanID {
			return gorm.ErrDuplicatedKey
		}
	}
	newID(&m.ID)
	r.matches = append(r.matches, *m)
	return nil
}

func (r *stubScanRepo) FindMatch(_ context.Context, scanID uuid.UUID) (*model.ScanMatch, error) {
	for i := range r.matches {
		if r.matches[i].ScanID == scanID {
			cp := r.matches[i]
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── AcquisitionRepository ─────────────────────────────────────────────────────

type stubAcquisitionRepo struct{ *memLedger }

var _ repository.AcquisitionRepository = (*stubAcquisitionRepo)(nil)

func (r *stubAcquisitionRepo) Create(_ context.Context, a *model.Acquisition) error {
	newID(&a.ID)
	cp := *a
	r.acquisitions[a.ID] = &cp
	return nil
}

func (r *stubAcquisitionRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Acquisition, error) {
	a, ok := r.acquisitions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *stubAcquisitionRepo) UpdateMethod(_ context.Context, id uuid.UUID, method string) error {
	a, ok := r.acquisitions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.AllocationMethod = method
	return nil
}

// ── PricePointRepository ──────────────────────────────────────────────────────

type stubPricePointRepo struct{ *memLedger }

var _ repository.PricePointRepository = (*stubPricePointRepo)(nil)

func (r *stubPricePointRepo) ListByCard(_ context.Context, cardID string) ([]model.PricePoint, error) {
	var out []model.PricePoint
	for _, p := range r.points {
		if p.CardID == cardID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *stubPricePointRepo) ListByCardFinish(_ context.Context, cardID, finish string) ([]model.PricePoint, error) {
	var out []model.PricePoint
	for _, p := range r.points {
		if p.CardID == cardID && p.Finish == finish {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *stubPricePointRepo) Upsert(_ context.Context, points []model.PricePoint) error {
	for _, p := range points {
		replaced := false
		for i := range r.points {
			q := &r.points[i]
			if q.CardID == p.CardID && q.Provider == p.Provider && q.Finish == p.Finish && q.Date.Equal(p.Date) {
				q.PriceCent, q.Currency, q.AsOf = p.PriceCent, p.Currency, p.AsOf
				replaced = true
				break
			}
		}
		if !replaced {
			newID(&p.ID)
			r.points = append(r.points, p)
		}
	}
	return nil
}
