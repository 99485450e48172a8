package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dfe0990ngc/pcds-student-portal/pkg/response"
)

// HealthHandler reports process and database liveness.
type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	dbStatus := "ok"
	if h.db != nil {
		if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			dbStatus = "unreachable"
		}
	}

	if dbStatus != "ok" {
		response.Fail(c, http.StatusServiceUnavailable, "Service degraded", gin.H{
			"database": dbStatus,
		})
		return
	}

	response.Success(c, http.StatusOK, "OK", gin.H{
		"database": dbStatus,
	})
}
