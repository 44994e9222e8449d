package router

import (
	"github.com/Danmoreng/mtg-pwa-sub001/internal/config"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/repository"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/service"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services is the service graph shared by the HTTP layer, the worker pool
// and the reconcile cron. Build it once per process: the reconciler
// serializes runs with an in-process lock.
type Services struct {
	Reconciler service.ReconcilerService
	Prices     service.PriceResolver
	Allocator  service.CostAllocatorService
	Imports    service.ImportService
	PnL        service.PnLService
}

// NewServices wires Service ← Repository ← DB/Redis. rdb may be nil.
func NewServices(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *Services {
	lotRepo := repository.NewLotRepository(db)
	allocRepo := repository.NewAllocationRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	scanRepo := repository.NewScanRepository(db)
	acqRepo := repository.NewAcquisitionRepository(db)
	priceRepo := repository.NewPricePointRepository(db)

	pnlCache := cache.New(cfg.PnLCacheTTL, 2*cfg.PnLCacheTTL)

	reconciler := service.NewReconcilerService(lotRepo, allocRepo, saleRepo, scanRepo, cfg.DefaultCurrency, pnlCache)
	prices := service.NewPriceResolver(priceRepo, rdb, cfg.DefaultCurrency)
	allocator := service.NewCostAllocatorService(acqRepo, lotRepo, prices, pnlCache)

	return &Services{
		Reconciler: reconciler,
		Prices:     prices,
		Allocator:  allocator,
		Imports:    service.NewImportService(acqRepo, lotRepo, allocator, reconciler, cfg.DefaultCurrency),
		PnL:        service.NewPnLService(acqRepo, lotRepo, allocRepo, saleRepo, pnlCache),
	}
}
