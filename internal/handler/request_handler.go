package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/helphub-go-api/internal/dto"
	"github.com/noah-isme/helphub-go-api/internal/middleware"
	"github.com/noah-isme/helphub-go-api/internal/service"
	"github.com/noah-isme/helphub-go-api/internal/utils"
)

// RequestHandler exposes the help request lifecycle over HTTP.
type RequestHandler struct {
	service service.RequestService
	uploads service.UploadService
	logger  zerolog.Logger
}

// NewRequestHandler creates a request handler instance.
func NewRequestHandler(requests service.RequestService, uploads service.UploadService, logger zerolog.Logger) *RequestHandler {
	return &RequestHandler{
		service: requests,
		uploads: uploads,
		logger:  logger.With().Str("component", "request_handler").Logger(),
	}
}

// Register binds request routes under the provided router group.
func (h *RequestHandler) Register(router fiber.Router) {
	router.Post("", middleware.RequireCapability(middleware.OpRequestCreate), h.create)
	router.Get("", middleware.RequireCapability(middleware.OpRequestList), h.list)

	router.Get("/volunteer-stats", middleware.RequireCapability(middleware.OpVolunteerStats), h.volunteerStats)
	router.Get("/volunteer-requests", middleware.RequireCapability(middleware.OpVolunteerStats), h.volunteerRequests)

	router.Get("/:id", middleware.RequireCapability(middleware.OpRequestView), h.get)
	router.Put("/:id", middleware.RequireCapability(middleware.OpRequestUpdate), h.update)
	router.Delete("/:id", middleware.RequireCapability(middleware.OpRequestDelete), h.remove)
	router.Post("/:id/accept", middleware.RequireCapability(middleware.OpRequestAccept), h.accept)
	router.Put("/:id/status", middleware.RequireCapability(middleware.OpRequestAdvance), h.updateStatus)
	router.Post("/:id/apply", middleware.RequireCapability(middleware.OpRequestApply), h.apply)
	router.Post("/:id/cancel", middleware.RequireCapability(middleware.OpRequestCancel), h.cancel)
	router.Post("/:id/rate", middleware.RequireCapability(middleware.OpRequestRate), h.rate)
	router.Post("/:id/images", middleware.RequireCapability(middleware.OpRequestUpdate), h.attachImages)
}

func (h *RequestHandler) create(c *fiber.Ctx) error {
	var payload dto.RequestCreatePayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Create(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to create request")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "request created", response)
}

func (h *RequestHandler) list(c *fiber.Ctx) error {
	var query dto.RequestListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	response, err := h.service.List(requestContext(c), userIDFromContext(c), userRoleFromContext(c), query)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to list requests")
	}

	return utils.SendSuccess(c, "requests retrieved", response)
}

func (h *RequestHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request id")
	}

	response, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to load request")
	}

	return utils.SendSuccess(c, "request retrieved", response)
}

func (h *RequestHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request id")
	}

	var payload dto.RequestUpdatePayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Update(requestContext(c), id, userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to update request")
	}

	return utils.SendSuccess(c, "request updated", response)
}

func (h *RequestHandler) remove(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request id")
	}

	if err := h.service.Delete(requestContext(c), id, userIDFromContext(c)); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to delete request")
	}

	return utils.SendSuccess(c, "request deleted", nil)
}

func (h *RequestHandler) accept(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request id")
	}

	response, err := h.service.Accept(requestContext(c), id, userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to accept request")
	}

	return utils.SendSuccess(c, "request accepted", response)
}

func (h *RequestHandler) updateStatus(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request id")
	}

	var payload dto.StatusUpdatePayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.UpdateStatus(requestContext(c), id, userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to update request status")
	}

	return utils.SendSuccess(c, "request status updated", response)
}

func (h *RequestHandler) apply(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request id")
	}

	var payload dto.ApplyPayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Apply(requestContext(c), id, userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to apply to request")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "application submitted", response)
}

func (h *RequestHandler) cancel(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request id")
	}

	var payload dto.CancelPayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Cancel(requestContext(c), id, userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to cancel request")
	}

	return utils.SendSuccess(c, "request cancelled", response)
}

func (h *RequestHandler) rate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request id")
	}

	var payload dto.RatePayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Rate(requestContext(c), id, userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to rate request")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "rating recorded", response)
}

// attachImages uploads every file in the multipart "images" field and appends
// the stored assets to the request.
func (h *RequestHandler) attachImages(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request id")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid multipart form")
	}

	files := form.File["images"]
	if len(files) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "at least one image is required")
	}
	if len(files) > 5 {
		return utils.SendError(c, fiber.StatusBadRequest, "at most 5 images per upload")
	}

	ctx := requestContext(c)
	assets := make([]dto.UploadedAsset, 0, len(files))
	for _, file := range files {
		asset, err := h.uploads.UploadImage(ctx, file)
		if err != nil {
			return sendServiceError(c, requestLogger(h.logger, c), err, "failed to upload image")
		}
		assets = append(assets, asset)
	}

	response, err := h.service.AttachImages(ctx, id, userIDFromContext(c), assets)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to attach images")
	}

	return utils.SendSuccess(c, "images attached", response)
}

func (h *RequestHandler) volunteerStats(c *fiber.Ctx) error {
	response, err := h.service.VolunteerStats(requestContext(c), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to load volunteer stats")
	}

	return utils.SendSuccess(c, "volunteer stats retrieved", response)
}

func (h *RequestHandler) volunteerRequests(c *fiber.Ctx) error {
	var query dto.RequestListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	response, err := h.service.VolunteerRequests(requestContext(c), userIDFromContext(c), query)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to load volunteer requests")
	}

	return utils.SendSuccess(c, "volunteer requests retrieved", response)
}
