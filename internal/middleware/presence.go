package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// PresenceRecorder stamps a user's last-active time.
type PresenceRecorder interface {
	Touch(ctx context.Context, userID uint, at time.Time) error
}

// Presence records activity for authenticated callers. The stamp is advisory:
// a failed write never fails the request.
func Presence(recorder PresenceRecorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if recorder != nil {
			if userID, ok := c.Locals("user_id").(uint); ok && userID != 0 {
				_ = recorder.Touch(c.UserContext(), userID, time.Now())
			}
		}
		return c.Next()
	}
}
