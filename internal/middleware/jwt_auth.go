package middleware

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mansoorceksport/coachmatch/internal/domain"
)

// Context keys for storing user info
const (
	UserIDKey       = "userID"
	RolesKey        = "roles"
	TenantIDKey     = "tenant_id"
	HomeBranchIDKey = "home_branch_id"
	BranchAccessKey = "branch_access"
)

// VerifyToken validates the access token and stores its claims in the request locals
func VerifyToken(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization token",
			})
		}

		// "Bearer <token>"
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.ParseWithClaims(tokenString, &domain.AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		claims, ok := token.Claims.(*domain.AccessClaims)
		if !ok || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token claims",
			})
		}

		c.Locals(UserIDKey, claims.UserID)
		c.Locals(RolesKey, claims.Roles)
		c.Locals(TenantIDKey, claims.TenantID)
		c.Locals(HomeBranchIDKey, claims.HomeBranchID)
		c.Locals(BranchAccessKey, claims.BranchAccess)

		return c.Next()
	}
}

// AuthorizeRole checks if user has at least one of the required roles
func AuthorizeRole(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rolesInterface := c.Locals(RolesKey)
		if rolesInterface == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "No roles found in token",
			})
		}

		userRoles, ok := rolesInterface.([]string)
		if !ok {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Invalid roles format",
			})
		}

		for _, userRole := range userRoles {
			if slices.Contains(allowedRoles, userRole) {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":          "Insufficient permissions",
			"required_roles": allowedRoles,
		})
	}
}

// TenantScope ensures user_id is present and that every role except super_admin carries a tenant.
// Trainer assignment only exists inside a gym, so unlike solo workout tracking members need one too.
func TenantScope() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(UserIDKey).(string)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing user context",
			})
		}

		if HasRole(c, domain.RoleSuperAdmin) {
			return c.Next()
		}

		if tenantID, _ := c.Locals(TenantIDKey).(string); tenantID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "User must belong to a tenant",
			})
		}

		return c.Next()
	}
}

// HasRole reports whether the authenticated user holds role
func HasRole(c *fiber.Ctx, role string) bool {
	roles, _ := c.Locals(RolesKey).([]string)
	return slices.Contains(roles, role)
}

// IsAdmin covers both platform and gym owners
func IsAdmin(c *fiber.Ctx) bool {
	return HasRole(c, domain.RoleSuperAdmin) || HasRole(c, domain.RoleTenantAdmin)
}

// CanAccessBranch checks the branch against the home branch and extra access list of the token.
// Admins reach every branch of their tenant.
func CanAccessBranch(c *fiber.Ctx, branchID string) bool {
	if branchID == "" {
		return false
	}
	if IsAdmin(c) {
		return true
	}
	if home, _ := c.Locals(HomeBranchIDKey).(string); home == branchID {
		return true
	}
	access, _ := c.Locals(BranchAccessKey).([]string)
	return slices.Contains(access, branchID)
}

// TenantID returns the tenant of the authenticated user; empty for super admins.
func TenantID(c *fiber.Ctx) string {
	if HasRole(c, domain.RoleSuperAdmin) {
		return ""
	}
	tenantID, _ := c.Locals(TenantIDKey).(string)
	return tenantID
}

// UserID returns the authenticated user
func UserID(c *fiber.Ctx) string {
	userID, _ := c.Locals(UserIDKey).(string)
	return userID
}
