package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/dto"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/identity"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/infra"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/model"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Service fakes ─────────────────────────────────────────────────────────────

type fakeReconciler struct {
	fullRuns int
	scoped   []identity.Key
	err      error
	report   dto.ReconcileReport
}

var _ service.ReconcilerService = (*fakeReconciler)(nil)

func (f *fakeReconciler) RecordScan(context.Context, dto.ScanEvent) (*dto.ReconcileReport, error) {
	return nil, nil
}
func (f *fakeReconciler) RecordSale(context.Context, dto.SellEvent) (*dto.ReconcileReport, error) {
	return nil, nil
}
func (f *fakeReconciler) AddAdjustmentLot(context.Context, dto.AdjustmentEvent) (*dto.LotResponse, error) {
	return nil, nil
}
func (f *fakeReconciler) FindLotsByIdentity(context.Context, dto.CardAttributes) (*dto.LotListResponse, error) {
	return nil, nil
}
func (f *fakeReconciler) GetLot(context.Context, uuid.UUID) (*dto.LotResponse, error) {
	return nil, nil
}
func (f *fakeReconciler) RemainingQty(context.Context, uuid.UUID) (*dto.RemainingResponse, error) {
	return nil, nil
}
func (f *fakeReconciler) FindOrCreateProvisionalLot(context.Context, identity.Key, time.Time, string, *uuid.UUID) (*model.CardLot, bool, error) {
	return nil, false, nil
}
func (f *fakeReconciler) RunReconciler(_ context.Context, key identity.Key) (*dto.ReconcileReport, error) {
	f.scoped = append(f.scoped, key)
	return &f.report, f.err
}
func (f *fakeReconciler) RunFullReconciler(context.Context) (*dto.ReconcileReport, error) {
	f.fullRuns++
	if f.err != nil {
		return nil, f.err
	}
	return &f.report, nil
}

type fakeAllocator struct {
	gotID     uuid.UUID
	gotMethod string
	err       error
}

func (f *fakeAllocator) AllocateAcquisitionCosts(_ context.Context, id uuid.UUID, method string) (*dto.AcquisitionResponse, error) {
	f.gotID, f.gotMethod = id, method
	return &dto.AcquisitionResponse{ID: id.String()}, f.err
}

type fakePrices struct {
	rows []dto.PriceFeedRow
	err  error
}

func (f *fakePrices) GetLatestPriceForCard(context.Context, string) (*model.PricePoint, error) {
	return nil, nil
}
func (f *fakePrices) GetLatestPriceForCardFinish(context.Context, string, string) (*model.PricePoint, error) {
	return nil, nil
}
func (f *fakePrices) ImportFeed(_ context.Context, rows []dto.PriceFeedRow) (*dto.PriceFeedImportResult, error) {
	f.rows = rows
	if f.err != nil {
		return nil, f.err
	}
	return &dto.PriceFeedImportResult{Imported: len(rows)}, nil
}

func raw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// ── Job handlers ──────────────────────────────────────────────────────────────

func TestReconcileJob_FullAndScoped(t *testing.T) {
	rec := &fakeReconciler{}
	jobs := &LedgerJobs{Reconciler: rec}

	require.NoError(t, jobs.Reconcile(context.Background(), raw(t, ReconcilePayload{})))
	assert.Equal(t, 1, rec.fullRuns)

	attrs := dto.CardAttributes{SetCode: "dom", Number: "123", Lang: "EN"}
	require.NoError(t, jobs.Reconcile(context.Background(), raw(t, ReconcilePayload{Identity: &attrs})))
	require.Len(t, rec.scoped, 1)
	assert.Equal(t, "DOM:123:EN:nonfoil", rec.scoped[0].Fingerprint)
}

func TestReconcileJob_StoreErrorIsRetryable(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("connection reset")}
	err := (&LedgerJobs{Reconciler: rec}).Reconcile(context.Background(), raw(t, ReconcilePayload{}))
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

func TestAllocateJob(t *testing.T) {
	alloc := &fakeAllocator{}
	jobs := &LedgerJobs{Allocator: alloc}
	id := uuid.New()

	require.NoError(t, jobs.AllocateCosts(context.Background(), raw(t, AllocatePayload{AcquisitionID: id.String(), Method: "manual"})))
	assert.Equal(t, id, alloc.gotID)
	assert.Equal(t, "manual", alloc.gotMethod)
}

func TestAllocateJob_PermanentFailures(t *testing.T) {
	jobs := &LedgerJobs{Allocator: &fakeAllocator{err: service.ErrNotFound}}

	err := jobs.AllocateCosts(context.Background(), raw(t, AllocatePayload{AcquisitionID: "not-a-uuid"}))
	assert.True(t, IsPermanent(err))

	err = jobs.AllocateCosts(context.Background(), raw(t, AllocatePayload{AcquisitionID: uuid.NewString()}))
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, service.ErrNotFound)

	err = jobs.AllocateCosts(context.Background(), json.RawMessage(`{`))
	assert.True(t, IsPermanent(err))
}

func TestPriceFeedJob(t *testing.T) {
	prices := &fakePrices{}
	jobs := &LedgerJobs{Prices: prices}
	upload := dto.PriceFeedUpload{Rows: []dto.PriceFeedRow{{Provider: "scryfall", CardID: "c1", Date: "2024-03-01", PriceCent: 10}}}

	require.NoError(t, jobs.ImportPriceFeed(context.Background(), raw(t, upload)))
	assert.Len(t, prices.rows, 1)

	prices.err = service.ErrInvalidInput
	assert.True(t, IsPermanent(jobs.ImportPriceFeed(context.Background(), raw(t, upload))))
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	base := errors.New("x")
	assert.ErrorIs(t, Permanent(base), base)
	assert.False(t, IsPermanent(base))
}

// ── Reconcile cron ────────────────────────────────────────────────────────────

func TestReconcileCron_SkipsWhileBreakerOpen(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("db down")}
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{Name: "cron", FailureThreshold: 1, OpenTimeout: time.Hour})
	cfg := ReconcileCronConfig{Reconciler: rec, CB: cb, Timeout: time.Second}

	runScheduledReconcile(context.Background(), cfg)
	assert.Equal(t, infra.CBOpen, cb.State())

	runScheduledReconcile(context.Background(), cfg)
	assert.Equal(t, 1, rec.fullRuns)
}
