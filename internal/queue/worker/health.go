package worker

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves the worker's liveness/readiness probes plus a
// lightweight metrics snapshot.
func (w *Worker) HealthHandler() http.Handler {
	r := gin.New()

	r.Use(gin.Recovery())

	// liveness: process is up
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// readiness: worker loop is running and able to claim
	r.GET("/readyz", func(c *gin.Context) {
		w.readyMu.RLock()
		ready := w.ready
		w.readyMu.RUnlock()

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/statusz", func(c *gin.Context) {
		s := w.metrics.Snapshot()

		c.JSON(http.StatusOK, gin.H{
			"claimed":      s.Claimed,
			"done":         s.Done,
			"failed":       s.Failed,
			"retried":      s.Retried,
			"deadLettered": s.DeadLettered,
			"avgDuration":  s.AverageDuration.String(),
			"maxDuration":  s.MaxDuration.String(),
		})
	})

	return r
}
