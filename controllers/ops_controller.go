package controllers

import (
	"bankledger/database"
	"bankledger/utils"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// OpsController обслуживает служебный gin сервер
type OpsController struct {
	db      *database.Database
	metrics *utils.Metrics
}

func NewOpsController(db *database.Database, metrics *utils.Metrics) *OpsController {
	return &OpsController{db: db, metrics: metrics}
}

// Health проверяет доступность хранилища
func (c *OpsController) Health(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := c.db.Ping(pingCtx); err != nil {
		utils.LogError("Health check failed: %v", err)
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Metrics возвращает снимок метрик
func (c *OpsController) Metrics(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.metrics.GetMetricsSnapshot())
}
