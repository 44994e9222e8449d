package handler

import (
	"context"
	"net/http"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/apierror"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/worker"

	"github.com/gin-gonic/gin"
)

// JobQueue is the subset of worker.Dispatcher the handlers enqueue through.
type JobQueue interface {
	EnqueuePriceFeed(ctx context.Context, payload interface{}) (string, error)
	EnqueueReconcile(ctx context.Context, payload worker.ReconcilePayload) (string, error)
	EnqueueAllocation(ctx context.Context, payload worker.AllocatePayload) (string, error)
}

// QueueUnavailable answers async endpoints when no job queue is configured.
func QueueUnavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, apierror.WithCode(apierror.CodeUnavailable, "background jobs require redis"))
}
