package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"LookTrainer/internal/http/handler"
)

type RouterConfig struct {
	Metrics http.Handler
}

func SetupRoutes(router *gin.Engine, h *handler.TrainingHandler, cfg RouterConfig) {
	router.Use(cors())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	TrainingRouter(router.Group("/api/training"), h)
}

func TrainingRouter(rg *gin.RouterGroup, h *handler.TrainingHandler) {
	rg.POST("/review-sessions", h.OpenSession)
	rg.GET("/review-status", h.ReviewStatus)
	rg.POST("/feedback", h.Feedback)
	rg.GET("/queue", h.Queue)
	rg.GET("/rules", h.CompileRules)
	rg.GET("/rules/:version", h.RulesVersion)
}

// cors lets the reviewer UI call the API from another origin; preflight
// requests are answered directly.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		headers := c.Writer.Header()
		headers.Set("Access-Control-Allow-Origin", "*")
		headers.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		headers.Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
