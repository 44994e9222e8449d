package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/dto"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/identity"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/model"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/repository"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// Event kinds reported in ReconcileFailure.Kind.
const (
	EventScan = "scan"
	EventSale = "sale"
)

// ReconcilerService matches scan and sale events against the lot ledger.
type ReconcilerService interface {
	// RecordScan stores the scan and reconciles its identity.
	RecordScan(ctx context.Context, ev dto.ScanEvent) (*dto.ReconcileReport, error)
	// RecordSale stores the sale together with its allocations. When the
	// sale cannot be covered nothing is stored and the report comes back
	// with an error wrapping ErrInsufficientInventory.
	RecordSale(ctx context.Context, ev dto.SellEvent) (*dto.ReconcileReport, error)
	AddAdjustmentLot(ctx context.Context, ev dto.AdjustmentEvent) (*dto.LotResponse, error)

	FindLotsByIdentity(ctx context.Context, attrs dto.CardAttributes) (*dto.LotListResponse, error)
	GetLot(ctx context.Context, id uuid.UUID) (*dto.LotResponse, error)
	RemainingQty(ctx context.Context, lotID uuid.UUID) (*dto.RemainingResponse, error)
	FindOrCreateProvisionalLot(ctx context.Context, key identity.Key, observedAt time.Time, origin string, acquisitionID *uuid.UUID) (*model.CardLot, bool, error)

	// RunReconciler settles outstanding events of one identity; an empty
	// fingerprint settles everything.
	RunReconciler(ctx context.Context, key identity.Key) (*dto.ReconcileReport, error)
	RunFullReconciler(ctx context.Context) (*dto.ReconcileReport, error)
}

type reconcilerService struct {
	lots        repository.LotRepository
	allocations repository.AllocationRepository
	sales       repository.SaleRepository
	scans       repository.ScanRepository

	// pnlCache holds acquisition P&L responses; nil disables eviction.
	pnlCache *cache.Cache

	defaultCurrency string
	normalizer      identity.Normalizer
	now             func() time.Time

	// mu serializes runs; the ledger has a single writer per process.
	mu sync.Mutex
}

func NewReconcilerService(
	lots repository.LotRepository,
	allocations repository.AllocationRepository,
	sales repository.SaleRepository,
	scans repository.ScanRepository,
	defaultCurrency string,
	pnlCache *cache.Cache,
) ReconcilerService {
	return &reconcilerService{
		lots:            lots,
		allocations:     allocations,
		sales:           sales,
		scans:           scans,
		pnlCache:        pnlCache,
		defaultCurrency: defaultCurrency,
		normalizer:      identity.Normalizer{Now: time.Now},
		now:             time.Now,
	}
}

func (s *reconcilerService) RecordScan(ctx context.Context, ev dto.ScanEvent) (*dto.ReconcileReport, error) {
	if ev.Quantity < 1 {
		return nil, fmt.Errorf("scan quantity %d: %w", ev.Quantity, ErrInvalidInput)
	}
	key := s.normalizer.Normalize(ev.ObservedAttributes.Input())
	scan := &model.Scan{
		CardID:      key.LotCardID(),
		Fingerprint: key.Fingerprint,
		SetCode:     key.SetCode,
		Number:      key.Number,
		Name:        key.Name,
		Finish:      string(key.Finish),
		Language:    key.Lang,
		Quantity:    ev.Quantity,
		ObservedAt:  s.eventTime(ev.Timestamp),
	}
	if err := s.scans.Create(ctx, scan); err != nil {
		return nil, err
	}
	log.Debug().Str("scan_id", scan.ID.String()).Str("fingerprint", key.Fingerprint).Msg("scan recorded")
	return s.RunReconciler(ctx, key)
}

func (s *reconcilerService) RecordSale(ctx context.Context, ev dto.SellEvent) (*dto.ReconcileReport, error) {
	if ev.Quantity < 1 {
		return nil, fmt.Errorf("sale quantity %d: %w", ev.Quantity, ErrInvalidInput)
	}
	if ev.PriceCent < 0 {
		return nil, fmt.Errorf("sale price %d: %w", ev.PriceCent, ErrInvalidInput)
	}
	key := s.normalizer.Normalize(ev.CardAttributes.Input())
	currency := strings.ToUpper(strings.TrimSpace(ev.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	tx := &model.SellTransaction{
		CardID:      key.LotCardID(),
		Fingerprint: key.Fingerprint,
		SetCode:     key.SetCode,
		Number:      key.Number,
		Name:        key.Name,
		Finish:      string(key.Finish),
		Language:    key.Lang,
		Quantity:    ev.Quantity,
		PriceCent:   ev.PriceCent,
		Currency:    currency,
		SoldAt:      s.eventTime(ev.Timestamp),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Pending scans and accepted sales of the identity go first.
	report, err := s.runLocked(ctx, key.Fingerprint)
	if err != nil {
		return nil, err
	}
	plan, lots, err := s.planSale(ctx, key, tx.Quantity, tx.SoldAt, report)
	if errors.Is(err, ErrInsufficientInventory) {
		report.Failures = append(report.Failures, dto.ReconcileFailure{Kind: EventSale, Reason: err.Error()})
		log.Warn().Str("fingerprint", key.Fingerprint).Int("quantity", tx.Quantity).Msg("sale rejected")
		return report, err
	}
	if err != nil {
		return nil, err
	}

	if err := s.sales.Create(ctx, tx); err != nil {
		return nil, err
	}
	if err := s.commitSale(ctx, tx, plan, lots, report); err != nil {
		return nil, fmt.Errorf("sale %s: %w", tx.ID, err)
	}
	log.Debug().Str("sale_id", tx.ID.String()).Str("fingerprint", key.Fingerprint).Msg("sale recorded")
	return report, nil
}

func (s *reconcilerService) AddAdjustmentLot(ctx context.Context, ev dto.AdjustmentEvent) (*dto.LotResponse, error) {
	if ev.Quantity < 1 || ev.UnitCostCent < 0 {
		return nil, fmt.Errorf("adjustment quantity %d, unit cost %d: %w", ev.Quantity, ev.UnitCostCent, ErrInvalidInput)
	}
	key := s.normalizer.Normalize(ev.CardAttributes.Input())
	lot := newLot(key, model.SourceAdjustment, ev.Quantity, s.eventTime(ev.Timestamp))
	lot.UnitCostCent = ev.UnitCostCent
	if c := strings.TrimSpace(ev.Condition); c != "" {
		lot.Condition = c
	}
	if _, err := s.lots.Add(ctx, lot); err != nil {
		return nil, err
	}
	log.Info().Str("lot_id", lot.ID.String()).Str("fingerprint", key.Fingerprint).
		Int("quantity", lot.Quantity).Msg("adjustment lot created")

	report, err := s.RunReconciler(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(report.Failures) > 0 {
		log.Warn().Int("failures", len(report.Failures)).Str("fingerprint", key.Fingerprint).
			Msg("sales still outstanding after adjustment")
	}
	resp := lotToResponse(lot)
	return &resp, nil
}

func (s *reconcilerService) FindLotsByIdentity(ctx context.Context, attrs dto.CardAttributes) (*dto.LotListResponse, error) {
	key := s.normalizer.Normalize(attrs.Input())
	lots, err := s.lots.FindByIdentity(ctx, lotIdentity(key))
	if err != nil {
		return nil, err
	}
	sortCandidates(lots)
	return &dto.LotListResponse{Identity: key, Data: lotsToResponse(lots)}, nil
}

func (s *reconcilerService) GetLot(ctx context.Context, id uuid.UUID) (*dto.LotResponse, error) {
	lot, err := s.lots.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "lot", id)
	}
	resp := lotToResponse(lot)
	return &resp, nil
}

// RemainingQty is the lot quantity minus everything already allocated from it.
func (s *reconcilerService) RemainingQty(ctx context.Context, lotID uuid.UUID) (*dto.RemainingResponse, error) {
	lot, err := s.lots.GetByID(ctx, lotID)
	if err != nil {
		return nil, notFound(err, "lot", lotID)
	}
	allocated, err := s.allocations.SumByLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	return &dto.RemainingResponse{
		LotID:     lotID.String(),
		Quantity:  lot.Quantity,
		Allocated: allocated,
		Remaining: lot.Quantity - allocated,
	}, nil
}

// FindOrCreateProvisionalLot returns the identity's provisional lot, creating
// an empty one on first use. Provisional lots never belong to an acquisition,
// so acquisitionID is only logged.
func (s *reconcilerService) FindOrCreateProvisionalLot(ctx context.Context, key identity.Key, observedAt time.Time, origin string, acquisitionID *uuid.UUID) (*model.CardLot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acquisitionID != nil {
		log.Debug().Str("acquisition_id", acquisitionID.String()).Str("fingerprint", key.Fingerprint).
			Msg("provisional lot requested for acquisition; lot stays unowned")
	}
	return s.findOrCreateProvisional(ctx, key, s.eventTime(observedAt), origin)
}

func (s *reconcilerService) findOrCreateProvisional(ctx context.Context, key identity.Key, observedAt time.Time, origin string) (*model.CardLot, bool, error) {
	lot, err := s.lots.FindProvisional(ctx, lotIdentity(key))
	if err != nil {
		return nil, false, err
	}
	if lot != nil {
		return lot, false, nil
	}
	lot = newLot(key, model.SourceProvisional, 0, observedAt)
	if _, err := s.lots.Add(ctx, lot); err != nil {
		return nil, false, err
	}
	log.Info().Str("lot_id", lot.ID.String()).Str("fingerprint", key.Fingerprint).
		Str("origin", origin).Msg("provisional lot created")
	return lot, true, nil
}

func (s *reconcilerService) RunReconciler(ctx context.Context, key identity.Key) (*dto.ReconcileReport, error) {
	return s.run(ctx, key.Fingerprint)
}

func (s *reconcilerService) RunFullReconciler(ctx context.Context) (*dto.ReconcileReport, error) {
	return s.run(ctx, "")
}

func (s *reconcilerService) run(ctx context.Context, fingerprint string) (*dto.ReconcileReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runLocked(ctx, fingerprint)
}

// runLocked settles unmatched scans first, so their surplus is available to
// the outstanding sales that follow. Callers hold mu.
func (s *reconcilerService) runLocked(ctx context.Context, fingerprint string) (*dto.ReconcileReport, error) {
	report := &dto.ReconcileReport{Failures: []dto.ReconcileFailure{}}

	scans, err := s.scans.ListUnmatched(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	for i := range scans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.reconcileScan(ctx, &scans[i], report); err != nil {
			return nil, fmt.Errorf("scan %s: %w", scans[i].ID, err)
		}
	}

	sales, err := s.sales.ListOutstanding(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := s.reconcileSale(ctx, &sales[i], report)
		switch {
		case errors.Is(err, ErrInsufficientInventory):
			report.Failures = append(report.Failures, dto.ReconcileFailure{
				EventID: sales[i].ID.String(),
				Kind:    EventSale,
				Reason:  err.Error(),
			})
		case err != nil:
			return nil, fmt.Errorf("sale %s: %w", sales[i].ID, err)
		}
	}

	log.Info().
		Str("fingerprint", fingerprint).
		Int("scans_matched", report.ScansMatched).
		Int("units_added", report.UnitsAdded).
		Int("sales_allocated", report.SalesAllocated).
		Int("allocations_created", report.AllocationsCreated).
		Int("provisional_lots_created", report.ProvisionalLotsCreated).
		Int("failures", len(report.Failures)).
		Msg("reconciliation run finished")
	return report, nil
}

// reconcileScan adds whatever the scan observed beyond the quantity still
// held for its identity to the provisional lot, then marks the scan matched.
func (s *reconcilerService) reconcileScan(ctx context.Context, scan *model.Scan, report *dto.ReconcileReport) error {
	key := scanKey(scan)
	lots, err := s.lots.FindByIdentity(ctx, lotIdentity(key))
	if err != nil {
		return err
	}
	remaining, err := s.remainingByLot(ctx, lots)
	if err != nil {
		return err
	}
	held := 0
	for _, r := range remaining {
		held += r
	}
	surplus := scan.Quantity - held

	var target *model.CardLot
	if surplus > 0 || len(lots) == 0 {
		lot, created, err := s.findOrCreateProvisional(ctx, key, scan.ObservedAt, EventScan)
		if err != nil {
			return err
		}
		if created {
			report.ProvisionalLotsCreated++
		}
		target = lot
	} else {
		sortCandidates(lots)
		target = &lots[0]
	}

	added := 0
	if surplus > 0 {
		if err := s.lots.IncrementQuantity(ctx, target.ID, surplus); err != nil {
			return err
		}
		added = surplus
	}
	if err := s.scans.CreateMatch(ctx, &model.ScanMatch{
		ScanID:        scan.ID,
		LotID:         target.ID,
		QuantityAdded: added,
	}); err != nil {
		return err
	}
	report.ScansMatched++
	report.UnitsAdded += added
	return nil
}

// reconcileSale finishes a stored sale whose allocations were cut short.
// Allocations are appended only when the whole outstanding quantity is
// covered.
func (s *reconcilerService) reconcileSale(ctx context.Context, tx *model.SellTransaction, report *dto.ReconcileReport) error {
	allocated, err := s.allocations.SumByTransaction(ctx, tx.ID)
	if err != nil {
		return err
	}
	outstanding := tx.Quantity - allocated
	if outstanding <= 0 {
		return nil
	}
	plan, lots, err := s.planSale(ctx, saleKey(tx), outstanding, tx.SoldAt, report)
	if err != nil {
		return err
	}
	return s.commitSale(ctx, tx, plan, lots, report)
}

// planSale spreads quantity over the identity's lots in depletion order. An
// identity with no lots gets its provisional lot so the event is represented
// even when the plan falls short.
func (s *reconcilerService) planSale(ctx context.Context, key identity.Key, quantity int, soldAt time.Time, report *dto.ReconcileReport) ([]model.SellAllocation, []model.CardLot, error) {
	lots, err := s.lots.FindByIdentity(ctx, lotIdentity(key))
	if err != nil {
		return nil, nil, err
	}
	if len(lots) == 0 {
		lot, created, err := s.findOrCreateProvisional(ctx, key, soldAt, EventSale)
		if err != nil {
			return nil, nil, err
		}
		if created {
			report.ProvisionalLotsCreated++
		}
		lots = []model.CardLot{*lot}
	}
	sortCandidates(lots)

	remaining, err := s.remainingByLot(ctx, lots)
	if err != nil {
		return nil, nil, err
	}
	plan, short := planAllocations(lots, remaining, quantity)
	if short > 0 {
		return nil, nil, fmt.Errorf("%d of %d units of %s not in stock: %w",
			short, quantity, key.Fingerprint, ErrInsufficientInventory)
	}
	return plan, lots, nil
}

// commitSale appends the planned allocations and drops the cached P&L of
// every acquisition whose lots they draw from.
func (s *reconcilerService) commitSale(ctx context.Context, tx *model.SellTransaction, plan []model.SellAllocation, lots []model.CardLot, report *dto.ReconcileReport) error {
	owner := make(map[uuid.UUID]*uuid.UUID, len(lots))
	for i := range lots {
		owner[lots[i].ID] = lots[i].AcquisitionID
	}
	for _, a := range plan {
		a.TransactionID = tx.ID
		if err := s.allocations.Create(ctx, &a); err != nil {
			return err
		}
		if acqID := owner[a.LotID]; acqID != nil && s.pnlCache != nil {
			s.pnlCache.Delete(pnlCacheKey(*acqID))
		}
	}
	report.SalesAllocated++
	report.AllocationsCreated += len(plan)
	return nil
}

func (s *reconcilerService) remainingByLot(ctx context.Context, lots []model.CardLot) (map[uuid.UUID]int, error) {
	ids := make([]uuid.UUID, 0, len(lots))
	for i := range lots {
		ids = append(ids, lots[i].ID)
	}
	sums, err := s.allocations.SumByLots(ctx, ids)
	if err != nil {
		return nil, err
	}
	remaining := make(map[uuid.UUID]int, len(lots))
	for i := range lots {
		remaining[lots[i].ID] = lots[i].Quantity - sums[lots[i].ID]
	}
	return remaining, nil
}

func (s *reconcilerService) eventTime(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t.UTC()
}

// planAllocations takes units from lots in order. short is what could not be
// covered.
func planAllocations(lots []model.CardLot, remaining map[uuid.UUID]int, quantity int) (plan []model.SellAllocation, short int) {
	need := quantity
	for i := range lots {
		if need == 0 {
			break
		}
		avail := remaining[lots[i].ID]
		if avail <= 0 {
			continue
		}
		take := min(avail, need)
		plan = append(plan, model.SellAllocation{LotID: lots[i].ID, Quantity: take})
		need -= take
	}
	return plan, need
}

var sourceRank = map[string]int{
	model.SourcePurchase:    0,
	model.SourceAdjustment:  1,
	model.SourceProvisional: 2,
}

// sortCandidates orders lots for depletion: purchased stock first, then
// adjustments, then provisional lots; oldest first within a source.
func sortCandidates(lots []model.CardLot) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := &lots[i], &lots[j]
		if ra, rb := sourceRank[a.Source], sourceRank[b.Source]; ra != rb {
			return ra < rb
		}
		if !a.PurchasedAt.Equal(b.PurchasedAt) {
			return a.PurchasedAt.Before(b.PurchasedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}
