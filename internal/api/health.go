package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/themobileprof/kernelchat/internal/circuitbreaker"
	"github.com/themobileprof/kernelchat/internal/metrics"
)

// RegisterHealth adds /health and /metrics. The breaker state is reported
// so a stuck model server shows up without scraping metrics.
func RegisterHealth(r gin.IRoutes, breaker *circuitbreaker.CircuitBreaker, model string) {
	r.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status": "healthy",
			"time":   time.Now().Unix(),
			"model":  model,
		}
		if breaker != nil {
			state, failures, _ := breaker.Stats()
			body["circuit"] = state.String()
			body["failures"] = failures
			if state == circuitbreaker.StateOpen {
				body["status"] = "degraded"
			}
		}
		c.JSON(http.StatusOK, body)
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}
