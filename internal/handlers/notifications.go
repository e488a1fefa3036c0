package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/loci-chat/internal/handlers/dto"
	"github.com/thereayou/loci-chat/internal/messages"
	"github.com/thereayou/loci-chat/internal/services"
)

type NotificationHandler struct {
	notifications services.NotificationLog
	pageSize      func(int) int
}

func NewNotificationHandler(notifications services.NotificationLog, log *messages.Log) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, pageSize: log.PageSize}
}

func (h *NotificationHandler) List(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}
	limit = h.pageSize(limit)

	items, total, err := h.notifications.List(c.Request.Context(), currentUser(c), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, dto.NotificationPage{
		Notifications: dto.NewNotificationList(items),
		Page:          page,
		Limit:         limit,
		Total:         total,
		TotalPages:    messages.TotalPages(total, limit),
	})
}
