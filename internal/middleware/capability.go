package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/helphub-go-api/internal/utils"
)

// Operation names gated by the capability table. Handlers reference these
// instead of role names so the authorization policy lives in one place.
const (
	OpRequestCreate   = "request:create"
	OpRequestUpdate   = "request:update"
	OpRequestDelete   = "request:delete"
	OpRequestCancel   = "request:cancel"
	OpRequestApply    = "request:apply"
	OpRequestAccept   = "request:accept"
	OpRequestAdvance  = "request:advance"
	OpRequestRate     = "request:rate"
	OpRequestList     = "request:list"
	OpRequestView     = "request:view"
	OpVolunteerStats  = "volunteer:stats"
	OpChatAccess      = "chat:access"
	OpAdminDashboard  = "admin:dashboard"
	OpAdminUsers      = "admin:users"
	OpAdminModeration = "admin:moderation"
)

// capabilities is the single authorization table, keyed by {role, operation}.
// Admins additionally hold every non-admin capability.
var capabilities = map[string]map[string]struct{}{
	"needy": toSet(
		OpRequestCreate, OpRequestUpdate, OpRequestDelete, OpRequestCancel,
		OpRequestRate, OpRequestList, OpRequestView, OpChatAccess,
	),
	"volunteer": toSet(
		OpRequestApply, OpRequestAccept, OpRequestAdvance,
		OpRequestList, OpRequestView, OpVolunteerStats, OpChatAccess,
	),
	"admin": toSet(
		OpRequestList, OpRequestView, OpChatAccess,
		OpAdminDashboard, OpAdminUsers, OpAdminModeration,
	),
}

func toSet(ops ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		set[op] = struct{}{}
	}
	return set
}

// HasCapability reports whether the role may perform the operation.
func HasCapability(role, operation string) bool {
	ops, ok := capabilities[strings.ToLower(strings.TrimSpace(role))]
	if !ok {
		return false
	}
	_, allowed := ops[operation]
	return allowed
}

// RequireCapability ensures the authenticated role holds the named capability.
// The check is evaluated once per request; ownership checks stay in services.
func RequireCapability(operation string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := normalizeRoleValue(c.Locals("user_role"))
		if role == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if !HasCapability(role, operation) {
			return utils.SendError(c, fiber.StatusForbidden, "operation not permitted for role")
		}
		return c.Next()
	}
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		if value == nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}
