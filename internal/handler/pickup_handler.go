package handler

import (
	"net/http"
	"strconv"
	"time"

	"pickup-service/internal/model"
	"pickup-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PickupHandler struct {
	lifecycle *service.LifecycleService
}

func NewPickupHandler(lifecycle *service.LifecycleService) *PickupHandler {
	return &PickupHandler{lifecycle: lifecycle}
}

// Handles POST /api/pickups - schedules a pickup task (admin only).
func (h *PickupHandler) Schedule(c *gin.Context) {
	var req model.SchedulePickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	task, err := h.lifecycle.Schedule(GetActor(c), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Pickup task scheduled successfully", gin.H{"pickup_task": task}))
}

// Handles GET /api/pickups - returns a role-scoped, filtered task page.
func (h *PickupHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	filter := model.TaskFilter{
		Status: model.TaskStatus(c.Query("status")),
	}
	if collectorID := c.Query("collector_id"); collectorID != "" {
		id, err := uuid.Parse(collectorID)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid collector ID"))
			return
		}
		filter.CollectorID = &id
	}

	response, err := h.lifecycle.ListTasks(GetActor(c), filter, page, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("", gin.H{
		"pickup_tasks": response.PickupTasks,
		"pagination":   response.Pagination,
	}))
}

// Handles GET /api/pickups/:id - a single task with visibility checks.
func (h *PickupHandler) GetByID(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid task ID"))
		return
	}

	task, err := h.lifecycle.GetTask(GetActor(c), taskID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("", gin.H{"pickup_task": task}))
}

// Handles PATCH /api/pickups/:id/start - collector starts their task.
func (h *PickupHandler) Start(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid task ID"))
		return
	}

	task, err := h.lifecycle.Start(GetActor(c), taskID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Pickup task started successfully", gin.H{"pickup_task": task}))
}

// Handles PATCH /api/pickups/:id/complete - collector completes their task.
func (h *PickupHandler) Complete(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid task ID"))
		return
	}

	var req model.CompletePickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	task, err := h.lifecycle.Complete(GetActor(c), taskID, req.CompletionNotes)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Pickup task completed successfully", gin.H{"pickup_task": task}))
}

// Handles PATCH /api/pickups/:id/cancel - admin or owning collector cancels.
func (h *PickupHandler) Cancel(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid task ID"))
		return
	}

	var req model.CancelPickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	task, err := h.lifecycle.Cancel(GetActor(c), taskID, req.Reason)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Pickup task cancelled successfully", gin.H{"pickup_task": task}))
}

// Handles PATCH /api/pickups/:id/reschedule - admin moves a scheduled task.
func (h *PickupHandler) Reschedule(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid task ID"))
		return
	}

	var req model.ReschedulePickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	task, err := h.lifecycle.Reschedule(GetActor(c), taskID, req.ScheduledDate, req.Reason)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Pickup task rescheduled successfully", gin.H{"pickup_task": task}))
}

// Handles GET /api/pickups/collector/:collectorId/schedule - a collector's
// tasks within a date range.
func (h *PickupHandler) CollectorSchedule(c *gin.Context) {
	collectorID, err := uuid.Parse(c.Param("collectorId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid collector ID"))
		return
	}

	start, err := time.Parse(time.RFC3339, c.Query("start_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("start_date is required (RFC 3339)"))
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("end_date is required (RFC 3339)"))
		return
	}

	tasks, err := h.lifecycle.CollectorSchedule(GetActor(c), collectorID, start, end)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("", gin.H{"pickup_tasks": tasks}))
}

func (h *PickupHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
