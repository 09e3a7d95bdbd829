package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/helphub-go-api/internal/dto"
	"github.com/noah-isme/helphub-go-api/internal/middleware"
	"github.com/noah-isme/helphub-go-api/internal/service"
	"github.com/noah-isme/helphub-go-api/internal/utils"
)

// ChatHandler wires the chat endpoints including the websocket upgrade.
type ChatHandler struct {
	service  service.ChatService
	realtime service.RealtimeService
	uploads  service.UploadService
	logger   zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(chats service.ChatService, realtime service.RealtimeService, uploads service.UploadService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service:  chats,
		realtime: realtime,
		uploads:  uploads,
		logger:   logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes under the provided router group. Every route
// requires the chat capability; thread membership is enforced in the service.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Use(middleware.RequireCapability(middleware.OpChatAccess))

	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.handleConnection))

	router.Get("", h.listThreads)
	router.Get("/:chatId", h.messages)
	router.Post("/:chatId/messages", h.sendMessage)
	router.Post("/:chatId/images", h.sendImage)
	router.Post("/:chatId/typing", h.setTyping)
	router.Put("/:chatId/read", h.markRead)
	router.Delete("/:chatId/messages/:messageId", h.deleteMessage)
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	userID := websocketUserID(conn)
	if userID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	role := fmt.Sprint(conn.Locals("user_role"))
	correlation := fmt.Sprint(conn.Locals("correlation_id"))
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.RealtimeConnectionOptions{
		UserID:        userID,
		Role:          role,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Uint("user_id", userID).Msg("realtime websocket connected")
	h.realtime.ServeConnection(conn, opts)
	h.logger.Info().Uint("user_id", userID).Msg("realtime websocket disconnected")
}

func (h *ChatHandler) listThreads(c *fiber.Ctx) error {
	threads, err := h.service.ListThreads(requestContext(c), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to list chat threads")
	}

	return utils.SendSuccess(c, "chat threads retrieved", threads)
}

func (h *ChatHandler) messages(c *fiber.Ctx) error {
	chatID, err := parseIDParam(c, "chatId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chat id")
	}

	var query dto.MessagePageQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	response, err := h.service.Messages(requestContext(c), chatID, userIDFromContext(c), query)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to load messages")
	}

	return utils.SendSuccess(c, "messages retrieved", response)
}

func (h *ChatHandler) sendMessage(c *fiber.Ctx) error {
	chatID, err := parseIDParam(c, "chatId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chat id")
	}

	var payload dto.MessageSendPayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.SendMessage(requestContext(c), chatID, userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to send message")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", response)
}

func (h *ChatHandler) sendImage(c *fiber.Ctx) error {
	chatID, err := parseIDParam(c, "chatId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chat id")
	}

	file, err := c.FormFile("image")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "image file is required")
	}

	ctx := requestContext(c)
	asset, err := h.uploads.UploadImage(ctx, file)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to upload image")
	}

	response, err := h.service.SendImageMessage(ctx, chatID, userIDFromContext(c), asset)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to send image message")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "image sent", response)
}

func (h *ChatHandler) setTyping(c *fiber.Ctx) error {
	chatID, err := parseIDParam(c, "chatId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chat id")
	}

	var payload dto.TypingPayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.SetTyping(requestContext(c), chatID, userIDFromContext(c), payload.IsTyping); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to update typing state")
	}

	return utils.SendSuccess(c, "typing state updated", nil)
}

func (h *ChatHandler) markRead(c *fiber.Ctx) error {
	chatID, err := parseIDParam(c, "chatId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chat id")
	}

	if err := h.service.MarkRead(requestContext(c), chatID, userIDFromContext(c)); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to mark messages read")
	}

	return utils.SendSuccess(c, "messages marked read", nil)
}

func (h *ChatHandler) deleteMessage(c *fiber.Ctx) error {
	chatID, err := parseIDParam(c, "chatId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chat id")
	}
	messageID, err := parseIDParam(c, "messageId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid message id")
	}

	if err := h.service.DeleteMessage(requestContext(c), chatID, messageID, userIDFromContext(c)); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to delete message")
	}

	return utils.SendSuccess(c, "message deleted", nil)
}

func websocketUserID(conn *websocket.Conn) uint {
	if value := conn.Locals("user_id"); value != nil {
		switch v := value.(type) {
		case uint:
			return v
		case int:
			if v > 0 {
				return uint(v)
			}
		case float64:
			if v > 0 {
				return uint(v)
			}
		}
	}
	return 0
}
