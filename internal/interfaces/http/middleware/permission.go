package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundfoundry/backend/internal/infrastructure/auth"
	"go.uber.org/zap"
)

// RoleConfig holds configuration for role middleware
type RoleConfig struct {
	// Logger for middleware logging
	Logger *zap.Logger
	// OnDenied is called when access is denied (optional)
	OnDenied func(c *gin.Context, requiredRoles []string)
}

// RequireRole creates middleware that requires a specific role
func RequireRole(role string) gin.HandlerFunc {
	return RequireAnyRole(role)
}

// RequireRoleWithConfig creates middleware with custom config
func RequireRoleWithConfig(role string, cfg RoleConfig) gin.HandlerFunc {
	return RequireAnyRoleWithConfig(cfg, role)
}

// RequireAnyRole creates middleware that requires any of the specified roles
func RequireAnyRole(roles ...string) gin.HandlerFunc {
	return RequireAnyRoleWithConfig(RoleConfig{}, roles...)
}

// RequireAnyRoleWithConfig creates middleware that requires any of the specified roles with custom config
func RequireAnyRoleWithConfig(cfg RoleConfig, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			handleRoleDenied(c, cfg, roles, "No authentication claims found")
			return
		}

		matched := false
		for _, role := range roles {
			if claims.Role == role {
				matched = true
				break
			}
		}
		if !matched {
			handleRoleDenied(c, cfg, roles, "User lacks required role")
			return
		}

		if cfg.Logger != nil {
			cfg.Logger.Debug("Role check passed",
				zap.String("user_id", claims.UserID),
				zap.Strings("required_any", roles),
				zap.String("user_role", claims.Role),
			)
		}

		c.Next()
	}
}

// RequireAdmin creates middleware that only allows admin users.
// Used for manual credit grants and balance verification endpoints.
func RequireAdmin() gin.HandlerFunc {
	return RequireRole("admin")
}

// RequireAdminWithConfig creates admin-only middleware with custom config
func RequireAdminWithConfig(cfg RoleConfig) gin.HandlerFunc {
	return RequireRoleWithConfig("admin", cfg)
}

// handleRoleDenied handles access denied scenarios
func handleRoleDenied(c *gin.Context, cfg RoleConfig, requiredRoles []string, reason string) {
	if cfg.OnDenied != nil {
		cfg.OnDenied(c, requiredRoles)
		return
	}

	if cfg.Logger != nil {
		claims := GetJWTClaims(c)
		userID := ""
		userRole := ""
		if claims != nil {
			userID = claims.UserID
			userRole = claims.Role
		}

		cfg.Logger.Warn("Access denied",
			zap.String("reason", reason),
			zap.String("user_id", userID),
			zap.Strings("required_roles", requiredRoles),
			zap.String("user_role", userRole),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
	}

	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "ERR_FORBIDDEN",
			"message": "Access denied: insufficient privileges",
		},
	})
}

// HasRole is a helper function to check the role in handlers
func HasRole(c *gin.Context, role string) bool {
	claims := GetJWTClaims(c)
	if claims == nil {
		return false
	}
	return claims.Role == role
}

// IsAdmin is a helper function to check whether the request is from an admin
func IsAdmin(c *gin.Context) bool {
	claims := GetJWTClaims(c)
	if claims == nil {
		return false
	}
	return claims.IsAdmin()
}

// MustBeAdmin aborts the request if the user is not an admin.
// Returns true if the user is an admin, false if aborted.
func MustBeAdmin(c *gin.Context) bool {
	if !IsAdmin(c) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ERR_FORBIDDEN",
				"message": "Access denied: insufficient privileges",
			},
		})
		return false
	}
	return true
}

// CheckAccessFunc is a function type for custom access checking
type CheckAccessFunc func(claims *auth.Claims, c *gin.Context) bool

// RequireCustomAccess creates middleware with a custom access check function.
// This allows for logic that can't be expressed with a role name, for example
// restricting ledger reads to the owning user unless the caller is an admin.
func RequireCustomAccess(checkFunc CheckAccessFunc) gin.HandlerFunc {
	return RequireCustomAccessWithConfig(checkFunc, RoleConfig{})
}

// RequireCustomAccessWithConfig creates custom access middleware with config
func RequireCustomAccessWithConfig(checkFunc CheckAccessFunc, cfg RoleConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			handleRoleDenied(c, cfg, []string{"custom"}, "No authentication claims found")
			return
		}

		if !checkFunc(claims, c) {
			handleRoleDenied(c, cfg, []string{"custom"}, "Custom access check failed")
			return
		}

		c.Next()
	}
}
