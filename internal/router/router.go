package router

import (
	"github.com/Danmoreng/mtg-pwa-sub001/internal/config"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/handler"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/infra"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/middleware"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires the HTTP layer and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// Without Redis, async endpoints fall back to running inline or answer 503.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, svcs *Services, jobsCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(cfg.RateLimitPerMinute))

	var jobs handler.JobQueue
	if rdb != nil {
		jobs = worker.NewDispatcher(rdb)
	}

	// ── Handlers ─────────────────────────────────────────────────────────────
	eventsH := handler.NewEventsHandler(svcs.Reconciler)
	lotsH := handler.NewLotsHandler(svcs.Reconciler)
	reconcileH := handler.NewReconcileHandler(svcs.Reconciler, jobs)
	acquisitionsH := handler.NewAcquisitionsHandler(svcs.Imports, svcs.Allocator, svcs.PnL, jobs)
	pricesH := handler.NewPricesHandler(svcs.Prices, jobs, rdb, cfg.PriceCacheTTL)

	// ── Routes ───────────────────────────────────────────────────────────────
	r.GET("/health", handler.Health(db, rdb, jobsCB))

	v1 := r.Group("/v1")
	{
		v1.POST("/scans", eventsH.RecordScan)
		v1.POST("/sales", eventsH.RecordSale)
		v1.POST("/adjustments", eventsH.AddAdjustment)

		v1.GET("/lots", lotsH.List)
		v1.GET("/lots/:id", lotsH.Get)
		v1.GET("/lots/:id/remaining", lotsH.Remaining)

		v1.POST("/reconcile", reconcileH.Run)

		acq := v1.Group("/acquisitions")
		{
			acq.POST("", acquisitionsH.Import)
			acq.POST("/:id/allocate", acquisitionsH.Allocate)
			acq.GET("/:id/pnl", acquisitionsH.PnL)
		}

		v1.POST("/prices/feed", pricesH.ImportFeed)
		v1.GET("/prices/:card_id", pricesH.Latest)
		v1.GET("/precedence/:provider", pricesH.Precedence)

		if jobs != nil {
			v1.POST("/reconcile/jobs", reconcileH.Enqueue)
			acq.POST("/:id/allocate/jobs", acquisitionsH.AllocateAsync)
		} else {
			v1.POST("/reconcile/jobs", handler.QueueUnavailable)
			acq.POST("/:id/allocate/jobs", handler.QueueUnavailable)
		}
	}

	// Swagger UI: only enabled outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
