package handler

import (
	"net/http"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/dto"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/identity"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/service"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/worker"

	"github.com/gin-gonic/gin"
)

type ReconcileHandler struct {
	svc  service.ReconcilerService
	jobs JobQueue
}

func NewReconcileHandler(svc service.ReconcilerService, jobs JobQueue) *ReconcileHandler {
	return &ReconcileHandler{svc: svc, jobs: jobs}
}

// Run godoc
// @Summary Run the reconciler now
// @Description Without an identity every outstanding event is reconciled.
// @Tags reconcile
// @Accept json
// @Produce json
// @Param body body dto.ReconcileRequest false "Scope"
// @Success 200 {object} dto.ReconcileReport
// @Router /v1/reconcile [post]
func (h *ReconcileHandler) Run(c *gin.Context) {
	var req dto.ReconcileRequest
	if !bindOptional(c, &req) {
		return
	}
	var (
		report *dto.ReconcileReport
		err    error
	)
	if req.Identity == nil {
		report, err = h.svc.RunFullReconciler(c.Request.Context())
	} else {
		report, err = h.svc.RunReconciler(c.Request.Context(), identity.Normalize(req.Identity.Input()))
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Enqueue godoc
// @Summary Queue a reconciliation run for the worker pool
// @Tags reconcile
// @Accept json
// @Produce json
// @Param body body dto.ReconcileRequest false "Scope"
// @Success 202 {object} dto.JobAcceptedResponse
// @Router /v1/reconcile/jobs [post]
func (h *ReconcileHandler) Enqueue(c *gin.Context) {
	var req dto.ReconcileRequest
	if !bindOptional(c, &req) {
		return
	}
	id, err := h.jobs.EnqueueReconcile(c.Request.Context(), worker.ReconcilePayload{Identity: req.Identity})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.JobAcceptedResponse{JobID: id, Type: worker.JobReconcile})
}
