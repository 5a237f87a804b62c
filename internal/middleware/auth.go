package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"volunteer-service/internal/apperr"
	"volunteer-service/internal/store"
	"volunteer-service/pkg/jwtutil"
	"volunteer-service/pkg/logger"
	"volunteer-service/prometheus"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey = "user_id"
	EmailKey  = "email"
)

// AuthMiddleware validates the JWT token from the Authorization header
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Error("Missing Authorization header")
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"code":  apperr.Unauthenticated,
				"error": "missing authorization token",
			})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Error("Invalid Authorization header format")
			prometheus.RecordAuthError("invalid_auth_format")
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"code":  apperr.Unauthenticated,
				"error": "invalid authorization format, expected Bearer token",
			})
		}

		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Error("Invalid JWT token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"code":  apperr.Unauthenticated,
				"error": "invalid or expired token",
			})
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(EmailKey, claims.Email)

		return next(c)
	}
}

// RequireAdmin gates a route group on the admin role. The role is
// read from the user's stored record, not from the token claim, so a
// demotion takes effect on the next request.
func RequireAdmin(users store.UserStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			userID, ok := c.Get(UserIDKey).(uint)
			if !ok {
				log.Error("Admin route reached without authenticated user")
				prometheus.RecordAuthError("missing_identity")
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"code":  apperr.Unauthenticated,
					"error": "authentication required",
				})
			}

			user, err := users.GetByID(c.Request().Context(), userID)
			if err != nil {
				log.Error("Failed to load user for admin check", zap.Error(err))
				prometheus.RecordAuthError("admin_lookup_failed")
				return c.JSON(apperr.Status(err), echo.Map{
					"code":  apperr.CodeOf(err),
					"error": err.Error(),
				})
			}

			if !user.IsAdmin() {
				log.Warn("Non-admin attempted admin operation", zap.Uint("user_id", userID))
				prometheus.RecordAuthError("permission_denied")
				return c.JSON(http.StatusForbidden, echo.Map{
					"code":  apperr.PermissionDenied,
					"error": "admin role required",
				})
			}

			return next(c)
		}
	}
}
