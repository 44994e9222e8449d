package handler

import (
	"net/http"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/apierror"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/dto"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type LotsHandler struct {
	svc service.ReconcilerService
}

func NewLotsHandler(svc service.ReconcilerService) *LotsHandler {
	return &LotsHandler{svc: svc}
}

// List godoc
// @Summary List lots matching a card identity
// @Tags lots
// @Produce json
// @Param card_id query string false "Card ID"
// @Param set_code query string false "Set code"
// @Param number query string false "Collector number"
// @Param name query string false "Card name"
// @Param lang query string false "Language"
// @Param finish query string false "Finish"
// @Success 200 {object} dto.LotListResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/lots [get]
func (h *LotsHandler) List(c *gin.Context) {
	var f dto.LotFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeInvalidInput, err.Error()))
		return
	}
	if f.CardID == "" && f.Name == "" && (f.SetCode == "" || f.Number == "") {
		c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeInvalidInput, "card_id, name or set_code with number is required"))
		return
	}
	resp, err := h.svc.FindLotsByIdentity(c.Request.Context(), f.Attributes())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary Get a lot by id
// @Tags lots
// @Produce json
// @Param id path string true "Lot UUID"
// @Success 200 {object} dto.LotResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/lots/{id} [get]
func (h *LotsHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	lot, err := h.svc.GetLot(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

// Remaining godoc
// @Summary Remaining (unallocated) quantity of a lot
// @Tags lots
// @Produce json
// @Param id path string true "Lot UUID"
// @Success 200 {object} dto.RemainingResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/lots/{id}/remaining [get]
func (h *LotsHandler) Remaining(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.RemainingQty(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
