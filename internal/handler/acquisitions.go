package handler

import (
	"net/http"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/dto"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/service"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/worker"

	"github.com/gin-gonic/gin"
)

// AcquisitionsHandler imports purchases, (re)allocates their cost and
// reports realised P&L.
type AcquisitionsHandler struct {
	imports   service.ImportService
	allocator service.CostAllocatorService
	pnl       service.PnLService
	jobs      JobQueue
}

func NewAcquisitionsHandler(imports service.ImportService, allocator service.CostAllocatorService, pnl service.PnLService, jobs JobQueue) *AcquisitionsHandler {
	return &AcquisitionsHandler{imports: imports, allocator: allocator, pnl: pnl, jobs: jobs}
}

// Import godoc
// @Summary Import an acquisition with its purchase lots
// @Tags acquisitions
// @Accept json
// @Produce json
// @Param body body dto.AcquisitionImport true "Acquisition"
// @Success 201 {object} dto.AcquisitionResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/acquisitions [post]
func (h *AcquisitionsHandler) Import(c *gin.Context) {
	var req dto.AcquisitionImport
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.imports.ImportAcquisition(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Allocate godoc
// @Summary Allocate the acquisition cost across its lots
// @Description An empty method reuses the acquisition's stored method.
// @Tags acquisitions
// @Accept json
// @Produce json
// @Param id path string true "Acquisition UUID"
// @Param body body dto.AllocateRequest false "Method"
// @Success 200 {object} dto.AcquisitionResponse
// @Failure 404 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/acquisitions/{id}/allocate [post]
func (h *AcquisitionsHandler) Allocate(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.AllocateRequest
	if !bindOptional(c, &req) {
		return
	}
	resp, err := h.allocator.AllocateAcquisitionCosts(c.Request.Context(), id, req.Method)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AllocateAsync godoc
// @Summary Queue a cost allocation for the worker pool
// @Tags acquisitions
// @Accept json
// @Produce json
// @Param id path string true "Acquisition UUID"
// @Param body body dto.AllocateRequest false "Method"
// @Success 202 {object} dto.JobAcceptedResponse
// @Router /v1/acquisitions/{id}/allocate/jobs [post]
func (h *AcquisitionsHandler) AllocateAsync(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.AllocateRequest
	if !bindOptional(c, &req) {
		return
	}
	jobID, err := h.jobs.EnqueueAllocation(c.Request.Context(), worker.AllocatePayload{
		AcquisitionID: id.String(),
		Method:        req.Method,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.JobAcceptedResponse{JobID: jobID, Type: worker.JobAllocateCosts})
}

// PnL godoc
// @Summary Realised profit and loss of an acquisition
// @Tags acquisitions
// @Produce json
// @Param id path string true "Acquisition UUID"
// @Success 200 {object} dto.PnLResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/acquisitions/{id}/pnl [get]
func (h *AcquisitionsHandler) PnL(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.pnl.GetAcquisitionPnL(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
