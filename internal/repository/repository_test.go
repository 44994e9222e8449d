package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/infra"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestDB opens a migrated in-memory sqlite ledger.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := infra.NewDatabase(infra.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func lot(cardID, source string, qty int, at time.Time) *model.CardLot {
	return &model.CardLot{
		CardID:      cardID,
		Fingerprint: "fp-" + cardID,
		Finish:      model.FinishNonfoil,
		Language:    "EN",
		Quantity:    qty,
		Condition:   model.DefaultCondition,
		Source:      source,
		PurchasedAt: at,
	}
}

func ident(cardID string) LotIdentity {
	return LotIdentity{CardID: cardID, Fingerprint: "fp-" + cardID, Finish: model.FinishNonfoil, Language: "EN"}
}

func TestLotRepo_IdentityAndProvisional(t *testing.T) {
	ctx := context.Background()
	repo := NewLotRepository(newTestDB(t))

	newer := lot("c1", model.SourcePurchase, 2, t0.Add(time.Hour))
	older := lot("c1", model.SourcePurchase, 1, t0)
	foil := lot("c1", model.SourcePurchase, 5, t0)
	foil.Finish = model.FinishFoil
	for _, l := range []*model.CardLot{newer, older, foil} {
		id, err := repo.Add(ctx, l)
		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, id)
	}

	lots, err := repo.FindByIdentity(ctx, ident("c1"))
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, older.ID, lots[0].ID, "oldest purchase first")
	assert.Equal(t, newer.ID, lots[1].ID)

	prov, err := repo.FindProvisional(ctx, ident("c1"))
	require.NoError(t, err)
	assert.Nil(t, prov)

	p := lot("c1", model.SourceProvisional, 0, t0)
	p.CardID = "unknown:abc"
	_, err = repo.Add(ctx, p)
	require.NoError(t, err)

	// matched through the fingerprint even though the card id differs
	prov, err = repo.FindProvisional(ctx, ident("c1"))
	require.NoError(t, err)
	require.NotNil(t, prov)
	assert.Equal(t, p.ID, prov.ID)
}

func TestLotRepo_IncrementAndUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewLotRepository(newTestDB(t))

	l := lot("c2", model.SourceProvisional, 1, t0)
	_, err := repo.Add(ctx, l)
	require.NoError(t, err)

	require.NoError(t, repo.IncrementQuantity(ctx, l.ID, 3))
	assert.ErrorIs(t, repo.IncrementQuantity(ctx, l.ID, -10), ErrNegativeQuantity)
	assert.ErrorIs(t, repo.IncrementQuantity(ctx, uuid.New(), 1), gorm.ErrRecordNotFound)

	unit, residual := int64(125), int64(3)
	n, err := repo.Update(ctx, l.ID, LotPatch{UnitCostCent: &unit, CostResidualCent: &residual})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Update(ctx, l.ID, LotPatch{})
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := repo.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)
	assert.Equal(t, int64(125), got.UnitCostCent)
	assert.Equal(t, int64(4*125+3), got.CostCent())
}

func TestLotRepo_ListByAcquisition(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	acqs := NewAcquisitionRepository(db)
	lots := NewLotRepository(db)

	acq := &model.Acquisition{TotalCostCent: 100, Currency: "EUR", AllocationMethod: model.AllocationEqualPerCard, AcquiredAt: t0}
	require.NoError(t, acqs.Create(ctx, acq))
	require.NoError(t, acqs.UpdateMethod(ctx, acq.ID, model.AllocationManual))

	for _, card := range []string{"a", "b"} {
		l := lot(card, model.SourcePurchase, 1, t0)
		l.AcquisitionID = &acq.ID
		_, err := lots.Add(ctx, l)
		require.NoError(t, err)
	}
	_, err := lots.Add(ctx, lot("c", model.SourceAdjustment, 1, t0))
	require.NoError(t, err)

	got, err := lots.ListByAcquisition(ctx, acq.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	stored, err := acqs.FindByID(ctx, acq.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AllocationManual, stored.AllocationMethod)

	_, err = acqs.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSaleAndAllocationRepos_Outstanding(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	lots := NewLotRepository(db)
	sales := NewSaleRepository(db)
	allocs := NewAllocationRepository(db)

	l := lot("c3", model.SourcePurchase, 10, t0)
	_, err := lots.Add(ctx, l)
	require.NoError(t, err)

	sale := func(qty int, at time.Time) *model.SellTransaction {
		tx := &model.SellTransaction{
			CardID: "c3", Fingerprint: "fp-c3", Finish: model.FinishNonfoil, Language: "EN",
			Quantity: qty, PriceCent: 100, Currency: "EUR", SoldAt: at,
		}
		require.NoError(t, sales.Create(ctx, tx))
		return tx
	}
	first := sale(3, t0)
	second := sale(2, t0.Add(time.Minute))

	require.NoError(t, allocs.Create(ctx, &model.SellAllocation{TransactionID: first.ID, LotID: l.ID, Quantity: 3}))
	require.NoError(t, allocs.Create(ctx, &model.SellAllocation{TransactionID: second.ID, LotID: l.ID, Quantity: 1}))

	out, err := sales.ListOutstanding(ctx, "")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, second.ID, out[0].ID)

	out, err = sales.ListOutstanding(ctx, "fp-other")
	require.NoError(t, err)
	assert.Empty(t, out)

	sum, err := allocs.SumByLot(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, sum)

	sums, err := allocs.SumByLots(ctx, []uuid.UUID{l.ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int{l.ID: 4}, sums)

	sum, err = allocs.SumByTransaction(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum)

	list, err := allocs.ListByLots(ctx, []uuid.UUID{l.ID})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	txs, err := sales.FindByIDs(ctx, []uuid.UUID{first.ID, second.ID})
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestScanRepo_Unmatched(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	scans := NewScanRepository(db)

	mk := func(fp string, at time.Time) *model.Scan {
		s := &model.Scan{CardID: "c4", Fingerprint: fp, Finish: model.FinishNonfoil, Language: "EN", Quantity: 1, ObservedAt: at}
		require.NoError(t, scans.Create(ctx, s))
		return s
	}
	a := mk("fp-a", t0.Add(time.Minute))
	b := mk("fp-a", t0)
	c := mk("fp-b", t0)

	all, err := scans.ListUnmatched(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	require.NoError(t, scans.CreateMatch(ctx, &model.ScanMatch{ScanID: c.ID, LotID: uuid.New(), QuantityAdded: 1}))

	left, err := scans.ListUnmatched(ctx, "fp-a")
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, b.ID, left[0].ID, "oldest observation first")
	assert.Equal(t, a.ID, left[1].ID)

	m, err := scans.FindMatch(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, m.QuantityAdded)

	// one match per scan
	assert.Error(t, scans.CreateMatch(ctx, &model.ScanMatch{ScanID: c.ID, LotID: uuid.New()}))
}

func TestPricePointRepo_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewPricePointRepository(newTestDB(t))
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Upsert(ctx, []model.PricePoint{
		{CardID: "p1", Provider: "scryfall", Finish: model.FinishNonfoil, Date: day, Currency: "EUR", PriceCent: 100, AsOf: t0},
		{CardID: "p1", Provider: "scryfall", Finish: model.FinishFoil, Date: day, Currency: "EUR", PriceCent: 300, AsOf: t0},
	}))
	require.NoError(t, repo.Upsert(ctx, []model.PricePoint{
		{CardID: "p1", Provider: "scryfall", Finish: model.FinishNonfoil, Date: day, Currency: "USD", PriceCent: 120, AsOf: t0.Add(time.Hour)},
	}))
	require.NoError(t, repo.Upsert(ctx, nil))

	all, err := repo.ListByCard(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	nonfoil, err := repo.ListByCardFinish(ctx, "p1", model.FinishNonfoil)
	require.NoError(t, err)
	require.Len(t, nonfoil, 1)
	assert.Equal(t, int64(120), nonfoil[0].PriceCent)
	assert.Equal(t, "USD", nonfoil[0].Currency)
}
