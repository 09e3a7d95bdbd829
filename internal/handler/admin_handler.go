package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/helphub-go-api/internal/dto"
	"github.com/noah-isme/helphub-go-api/internal/middleware"
	"github.com/noah-isme/helphub-go-api/internal/service"
	"github.com/noah-isme/helphub-go-api/internal/utils"
)

// AdminHandler exposes the moderation surface.
type AdminHandler struct {
	service service.AdminService
	logger  zerolog.Logger
}

// NewAdminHandler creates an admin handler instance.
func NewAdminHandler(admin service.AdminService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		service: admin,
		logger:  logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register binds admin routes under the provided router group.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Get("/dashboard", middleware.RequireCapability(middleware.OpAdminDashboard), h.dashboard)
	router.Get("/leaderboard", middleware.RequireCapability(middleware.OpAdminDashboard), h.leaderboard)

	router.Get("/users", middleware.RequireCapability(middleware.OpAdminUsers), h.listUsers)
	router.Get("/users/:id", middleware.RequireCapability(middleware.OpAdminUsers), h.getUser)
	router.Put("/users/:id/status", middleware.RequireCapability(middleware.OpAdminUsers), h.updateUserStatus)

	router.Get("/requests", middleware.RequireCapability(middleware.OpAdminModeration), h.listRequests)
	router.Put("/requests/:id/flag", middleware.RequireCapability(middleware.OpAdminModeration), h.flagRequest)
	router.Delete("/requests/:id", middleware.RequireCapability(middleware.OpAdminModeration), h.deleteRequest)
	router.Put("/ratings/:id/flag", middleware.RequireCapability(middleware.OpAdminModeration), h.flagRating)
	router.Get("/flagged", middleware.RequireCapability(middleware.OpAdminModeration), h.flaggedContent)
}

func (h *AdminHandler) dashboard(c *fiber.Ctx) error {
	response, err := h.service.Dashboard(requestContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to build dashboard")
	}

	return utils.SendSuccess(c, "dashboard retrieved", response)
}

func (h *AdminHandler) leaderboard(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	entries, err := h.service.Leaderboard(requestContext(c), limit)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to load leaderboard")
	}

	return utils.SendSuccess(c, "leaderboard retrieved", entries)
}

func (h *AdminHandler) listUsers(c *fiber.Ctx) error {
	var query dto.AdminUserListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	response, err := h.service.ListUsers(requestContext(c), query)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to list users")
	}

	return utils.SendSuccess(c, "users retrieved", response)
}

func (h *AdminHandler) getUser(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	response, err := h.service.GetUser(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to load user")
	}

	return utils.SendSuccess(c, "user retrieved", response)
}

func (h *AdminHandler) updateUserStatus(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	var payload dto.UserStatusUpdatePayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.UpdateUserStatus(requestContext(c), id, payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to update user status")
	}

	return utils.SendSuccess(c, "user status updated", response)
}

func (h *AdminHandler) listRequests(c *fiber.Ctx) error {
	var query dto.AdminRequestListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	response, err := h.service.ListRequests(requestContext(c), query)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to list requests")
	}

	return utils.SendSuccess(c, "requests retrieved", response)
}

func (h *AdminHandler) flagRequest(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request id")
	}

	var payload dto.FlagPayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.FlagRequest(requestContext(c), id, payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to flag request")
	}

	return utils.SendSuccess(c, "request flag updated", response)
}

func (h *AdminHandler) flagRating(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid rating id")
	}

	var payload dto.FlagPayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.FlagRating(requestContext(c), id, payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to flag rating")
	}

	return utils.SendSuccess(c, "rating flag updated", response)
}

func (h *AdminHandler) deleteRequest(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request id")
	}

	if err := h.service.DeleteRequest(requestContext(c), id); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to delete request")
	}

	return utils.SendSuccess(c, "request deleted", nil)
}

func (h *AdminHandler) flaggedContent(c *fiber.Ctx) error {
	response, err := h.service.FlaggedContent(requestContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to load flagged content")
	}

	return utils.SendSuccess(c, "flagged content retrieved", response)
}
