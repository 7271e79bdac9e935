package middleware

import (
	"errors"
	"net/http"

	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/csrf"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/jwtutil"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/logger"
	"github.com/zhanikpanik/restaurant-checklist-sub001/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CSRF validates the anti-forgery token on every mutating request. Safe
// methods pass through. A rejection is a 403 whose error field contains
// "CSRF" so clients can detect this failure class, refresh their token once
// and retry.
func CSRF(codec *csrf.Codec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			log := logger.FromContext(c)
			token := c.Request().Header.Get(csrf.HeaderName)
			binding := SessionBindingFromRequest(c, codec)

			if err := codec.Check(token, binding); err != nil {
				reason := csrfReason(token, err)
				prometheus.CsrfRejectionsCounter.WithLabelValues(reason).Inc()
				log.Warn("CSRF validation failed",
					zap.String("reason", reason),
					zap.String("path", c.Request().URL.Path))

				return c.JSON(http.StatusForbidden, echo.Map{
					"success": false,
					"error":   "CSRF validation failed",
					"code":    "CSRF_INVALID",
				})
			}

			return next(c)
		}
	}
}

// SessionBindingFromRequest derives the session binding the same way for
// token issuance and validation: from the raw session cookie and the user ID
// inside it. Callers without a session share the stable anonymous binding.
func SessionBindingFromRequest(c echo.Context, codec *csrf.Codec) string {
	sessionToken := ""
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		sessionToken = cookie.Value
	}

	var userID uint
	if sessionToken != "" {
		if claims, err := jwtutil.ValidateToken(sessionToken); err == nil {
			userID = claims.UserID
		}
	}

	return codec.SessionBinding(sessionToken, userID)
}

func csrfReason(token string, err error) string {
	switch {
	case token == "":
		return "missing"
	case errors.Is(err, csrf.ErrExpired):
		return "expired"
	case errors.Is(err, csrf.ErrMismatch):
		return "mismatch"
	default:
		return "malformed"
	}
}
