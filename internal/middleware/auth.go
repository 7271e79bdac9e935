package middleware

import (
	"net/http"
	"strings"

	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/jwtutil"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/logger"
	"github.com/zhanikpanik/restaurant-checklist-sub001/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Auth verifies the session token and establishes the request scope.
// The token comes from the session cookie set at login, with an
// Authorization header fallback for API clients.
func Auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		prometheus.AuthAttemptsCounter.Inc()

		tokenString := sessionTokenFromRequest(c)
		if tokenString == "" {
			log.Warn("Missing session token")
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"success": false,
				"error":   "Authentication required",
			})
		}

		claims, err := jwtutil.ValidateToken(tokenString)
		if err != nil {
			log.Warn("Invalid session token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"success": false,
				"error":   "Authentication required",
			})
		}

		prometheus.AuthSuccessCounter.Inc()

		SetScope(c, &RequestScope{
			UserID:       claims.UserID,
			Email:        claims.Email,
			Role:         claims.Role,
			RestaurantID: claims.RestaurantID,
		})

		// Update logger with user information
		log = log.With(
			zap.Uint("user_id", claims.UserID),
			zap.String("email", claims.Email),
		)
		c.Set("logger", log)

		return next(c)
	}
}

// sessionTokenFromRequest extracts the raw session token from the cookie or
// the Authorization header
func sessionTokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[0:7], "bearer ") {
		return authHeader[7:]
	}
	return ""
}
