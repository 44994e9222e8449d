package handler

import (
	"errors"
	"net/http"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/apierror"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/dto"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// EventsHandler records scans, sales and inventory adjustments. Every
// event triggers a reconciliation of its card identity.
type EventsHandler struct {
	svc service.ReconcilerService
}

func NewEventsHandler(svc service.ReconcilerService) *EventsHandler {
	return &EventsHandler{svc: svc}
}

// RecordScan godoc
// @Summary Record a physical scan
// @Tags events
// @Accept json
// @Produce json
// @Param body body dto.ScanEvent true "Scan"
// @Success 200 {object} dto.ReconcileReport
// @Failure 400 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/scans [post]
func (h *EventsHandler) RecordScan(c *gin.Context) {
	var req dto.ScanEvent
	if !bindAndValidate(c, &req) {
		return
	}
	report, err := h.svc.RecordScan(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// RecordSale godoc
// @Summary Record a sale and allocate it to lots
// @Description A sale that cannot be covered is not stored and is answered with 409; retry it once stock is added.
// @Tags events
// @Accept json
// @Produce json
// @Param body body dto.SellEvent true "Sale"
// @Success 200 {object} dto.ReconcileReport
// @Failure 409 {object} dto.SaleConflictResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/sales [post]
func (h *EventsHandler) RecordSale(c *gin.Context) {
	var req dto.SellEvent
	if !bindAndValidate(c, &req) {
		return
	}
	report, err := h.svc.RecordSale(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInsufficientInventory) && report != nil {
			c.JSON(http.StatusConflict, dto.SaleConflictResponse{Code: apierror.CodeInsufficientInventory, Detail: err.Error(), Report: *report})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// AddAdjustment godoc
// @Summary Add an adjustment lot
// @Tags events
// @Accept json
// @Produce json
// @Param body body dto.AdjustmentEvent true "Adjustment"
// @Success 201 {object} dto.LotResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/adjustments [post]
func (h *EventsHandler) AddAdjustment(c *gin.Context) {
	var req dto.AdjustmentEvent
	if !bindAndValidate(c, &req) {
		return
	}
	lot, err := h.svc.AddAdjustmentLot(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lot)
}
