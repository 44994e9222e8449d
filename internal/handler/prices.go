package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/apierror"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/dto"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/identity"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/model"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/service"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// PricesHandler serves resolved market prices and accepts price feeds.
// Lookups are read-through cached in Redis when a client is configured.
type PricesHandler struct {
	resolver service.PriceResolver
	jobs     JobQueue
	rdb      *redis.Client
	ttl      time.Duration
}

func NewPricesHandler(resolver service.PriceResolver, jobs JobQueue, rdb *redis.Client, ttl time.Duration) *PricesHandler {
	return &PricesHandler{resolver: resolver, jobs: jobs, rdb: rdb, ttl: ttl}
}

// ImportFeed godoc
// @Summary Import a price feed
// @Description Queued for the worker pool; sync=true imports inline.
// @Tags prices
// @Accept json
// @Produce json
// @Param sync query bool false "Import inline"
// @Param body body dto.PriceFeedUpload true "Feed rows"
// @Success 200 {object} dto.PriceFeedImportResult
// @Success 202 {object} dto.JobAcceptedResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/prices/feed [post]
func (h *PricesHandler) ImportFeed(c *gin.Context) {
	var req dto.PriceFeedUpload
	if !bindAndValidate(c, &req) {
		return
	}
	if c.Query("sync") == "true" || h.jobs == nil {
		res, err := h.resolver.ImportFeed(c.Request.Context(), req.Rows)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}
	id, err := h.jobs.EnqueuePriceFeed(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.JobAcceptedResponse{JobID: id, Type: worker.JobPriceFeedImport})
}

// Latest godoc
// @Summary Latest market price of a card
// @Description The highest-precedence provider wins; recency breaks ties.
// @Tags prices
// @Produce json
// @Param card_id path string true "Card ID"
// @Param finish query string false "Finish (nonfoil, foil, etched)"
// @Success 200 {object} dto.PricePointResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/prices/{card_id} [get]
func (h *PricesHandler) Latest(c *gin.Context) {
	cardID := strings.TrimSpace(c.Param("card_id"))
	finish := ""
	if raw := c.Query("finish"); raw != "" {
		finish = string(identity.NormalizeFinish(raw, nil))
	}
	ctx := c.Request.Context()
	cacheKey := service.PriceCacheKey(cardID, finish)

	if h.rdb != nil {
		if cached, err := h.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var resp dto.PricePointResponse
			if jsonErr := json.Unmarshal(cached, &resp); jsonErr == nil {
				c.JSON(http.StatusOK, resp)
				return
			}
		}
	}

	var (
		point *model.PricePoint
		err   error
	)
	if finish == "" {
		point, err = h.resolver.GetLatestPriceForCard(ctx, cardID)
	} else {
		point, err = h.resolver.GetLatestPriceForCardFinish(ctx, cardID, finish)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	if point == nil {
		c.JSON(http.StatusNotFound, apierror.WithCode(apierror.CodeNotFound, "no price for card "+cardID))
		return
	}

	resp := service.ToPricePointResponse(point)
	if h.rdb != nil {
		if b, jsonErr := json.Marshal(resp); jsonErr == nil {
			if err := h.rdb.Set(context.WithoutCancel(ctx), cacheKey, b, h.ttl).Err(); err != nil {
				log.Debug().Err(err).Str("key", cacheKey).Msg("price cache write failed")
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Precedence godoc
// @Summary Precedence rank of a price provider (lower wins)
// @Tags prices
// @Produce json
// @Param provider path string true "Provider"
// @Success 200 {object} dto.PrecedenceResponse
// @Router /v1/precedence/{provider} [get]
func (h *PricesHandler) Precedence(c *gin.Context) {
	provider := c.Param("provider")
	rank := service.SourcePrecedence(provider)
	c.JSON(http.StatusOK, dto.PrecedenceResponse{
		Provider:   provider,
		Precedence: rank,
		Known:      rank != service.UnknownPrecedence,
	})
}
