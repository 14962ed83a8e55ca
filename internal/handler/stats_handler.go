package handler

import (
	"net/http"

	"pickup-service/internal/model"
	"pickup-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type StatsHandler struct {
	stats *service.StatsService
}

func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Handles GET /api/collectors/:id/stats. Collectors may only view their own
// numbers; aggregation itself is fail-soft and always returns a body.
func (h *StatsHandler) CollectorStats(c *gin.Context) {
	collectorID, ok := h.collectorParam(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, successResponse("", gin.H{"stats": h.stats.CollectorStats(collectorID)}))
}

// Handles GET /api/collectors/:id/performance?period=week|month|year.
func (h *StatsHandler) CollectorPerformance(c *gin.Context) {
	collectorID, ok := h.collectorParam(c)
	if !ok {
		return
	}

	period := c.DefaultQuery("period", "week")
	switch period {
	case "week", "month", "year":
	default:
		c.JSON(http.StatusBadRequest, errorResponse("period must be week, month or year"))
		return
	}

	c.JSON(http.StatusOK, successResponse("", gin.H{"performance": h.stats.CollectorPerformance(collectorID, period)}))
}

func (h *StatsHandler) collectorParam(c *gin.Context) (uuid.UUID, bool) {
	collectorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid collector ID"))
		return uuid.Nil, false
	}

	actor := GetActor(c)
	if actor.Role == model.RoleCollector && actor.ID != collectorID {
		c.JSON(http.StatusForbidden, errorResponse("access denied"))
		return uuid.Nil, false
	}
	if actor.Role == model.RoleResident {
		c.JSON(http.StatusForbidden, errorResponse("access denied"))
		return uuid.Nil, false
	}

	return collectorID, true
}
