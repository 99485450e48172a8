package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dfe0990ngc/pcds-student-portal/internal/services"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/response"
)

// MaintenanceHandler exposes the operational cleanup endpoints.
type MaintenanceHandler struct {
	maintenance *services.MaintenanceService
}

func NewMaintenanceHandler(maintenance *services.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: maintenance}
}

// GET /api/clear-rate-limit-cache
func (h *MaintenanceHandler) ClearRateLimitCache(c *gin.Context) {
	count, err := h.maintenance.ClearRateLimit(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Rate limit cache cleared successfully", gin.H{
		"cleared": count,
	})
}

// GET /api/clear-expired-tokens
func (h *MaintenanceHandler) ClearExpiredTokens(c *gin.Context) {
	count, err := h.maintenance.ClearExpiredTokens(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Expired tokens cleared successfully", gin.H{
		"deleted": count,
	})
}
