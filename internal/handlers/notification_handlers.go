package handlers

import (
	"net/http"

	"github.com/Societyforcis/SCIS-Backend/internal/middleware"
	"github.com/Societyforcis/SCIS-Backend/internal/models"
	"github.com/Societyforcis/SCIS-Backend/internal/services"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const defaultPageSize = 20

type NotificationHandler struct {
	notificationService services.NotificationService
}

func NewNotificationHandler(ns services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: ns}
}

// CreateNotification publishes a notification to the chosen recipients.
func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	var req services.CreateNotificationRequest
	if !bindJSON(c, &req, "CreateNotification") {
		return
	}
	h.create(c, req)
}

// SendAnnouncement is CreateNotification with the type forced to announcement.
func (h *NotificationHandler) SendAnnouncement(c *gin.Context) {
	var req services.CreateNotificationRequest
	if !bindJSON(c, &req, "SendAnnouncement") {
		return
	}
	req.Type = models.NotificationTypeAnnouncement
	h.create(c, req)
}

func (h *NotificationHandler) create(c *gin.Context, req services.CreateNotificationRequest) {
	n, err := h.notificationService.CreateNotification(c.Request.Context(), middleware.CallerFrom(c), req)
	if err != nil {
		respondError(c, err, "CreateNotification")
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, "Notification created successfully", n)
}

// GetUserNotifications lists the caller's notifications and marks them viewed.
func (h *NotificationHandler) GetUserNotifications(c *gin.Context) {
	list, err := h.notificationService.ListForUser(c.Request.Context(), middleware.CallerFrom(c).UserID)
	if err != nil {
		respondError(c, err, "GetUserNotifications")
		return
	}
	if list == nil {
		list = []models.UserNotification{}
	}
	utils.RespondSuccess(c, http.StatusOK, "Notifications retrieved", gin.H{"notifications": list, "count": len(list)})
}

func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	n, err := h.notificationService.UnreadCount(c.Request.Context(), middleware.CallerFrom(c).UserID)
	if err != nil {
		respondError(c, err, "GetUnreadCount")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Unread count retrieved", gin.H{"count": n})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	if err := h.notificationService.MarkRead(c.Request.Context(), c.Param("id"), middleware.CallerFrom(c).UserID); err != nil {
		respondError(c, err, "MarkAsRead")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Notification marked as read", nil)
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	n, err := h.notificationService.MarkAllRead(c.Request.Context(), middleware.CallerFrom(c).UserID)
	if err != nil {
		respondError(c, err, "MarkAllAsRead")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "All notifications marked as read", gin.H{"updated": n})
}

// GetAllNotifications is the paginated admin listing (?page=&limit=).
func (h *NotificationHandler) GetAllNotifications(c *gin.Context) {
	page := utils.PositiveIntOr(c.Query("page"), 1)
	limit := utils.PositiveIntOr(c.Query("limit"), defaultPageSize)

	result, err := h.notificationService.AdminList(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err, "GetAllNotifications")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Notifications retrieved", result)
}

func (h *NotificationHandler) GetNotificationStats(c *gin.Context) {
	stats, err := h.notificationService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, "GetNotificationStats")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Notification statistics retrieved", stats)
}

func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	if err := h.notificationService.DeleteNotification(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "DeleteNotification")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Notification deleted successfully", nil)
}
