package handler

import (
	"net/http"

	"pickup-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
}

func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	actor := GetActor(c)

	response, err := h.notificationService.GetUserNotifications(actor.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	actor := GetActor(c)

	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid notification ID"))
		return
	}

	if err := h.notificationService.MarkAsRead(notificationID, actor.ID); err != nil {
		c.JSON(http.StatusNotFound, errorResponse("notification not found"))
		return
	}

	c.JSON(http.StatusOK, successResponse("notification marked as read", nil))
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	actor := GetActor(c)

	if err := h.notificationService.MarkAllAsRead(actor.ID); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("all notifications marked as read", nil))
}
