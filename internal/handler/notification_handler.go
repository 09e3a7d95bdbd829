package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/helphub-go-api/internal/service"
	"github.com/noah-isme/helphub-go-api/internal/utils"
)

// NotificationHandler serves the caller's notification inbox.
type NotificationHandler struct {
	service service.NotificationService
	logger  zerolog.Logger
}

// NewNotificationHandler creates a notification handler instance.
func NewNotificationHandler(notifications service.NotificationService, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: notifications,
		logger:  logger.With().Str("component", "notification_handler").Logger(),
	}
}

// Register binds notification routes under the provided router group.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/unread-count", h.unreadCount)
	router.Put("/read-all", h.markAllRead)
	router.Put("/:id/read", h.markRead)
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	items, pagination, err := h.service.List(requestContext(c), userIDFromContext(c), page, pageSize)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to list notifications")
	}

	return utils.SendSuccess(c, "notifications retrieved", fiber.Map{
		"items":      items,
		"pagination": pagination,
	})
}

func (h *NotificationHandler) unreadCount(c *fiber.Ctx) error {
	count, err := h.service.UnreadCount(requestContext(c), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to count unread notifications")
	}

	return utils.SendSuccess(c, "unread count retrieved", fiber.Map{"unread": count})
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid notification id")
	}

	if err := h.service.MarkRead(requestContext(c), userIDFromContext(c), id); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to mark notification read")
	}

	return utils.SendSuccess(c, "notification marked read", nil)
}

func (h *NotificationHandler) markAllRead(c *fiber.Ctx) error {
	if err := h.service.MarkAllRead(requestContext(c), userIDFromContext(c)); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to mark notifications read")
	}

	return utils.SendSuccess(c, "all notifications marked read", nil)
}
