package handler

import (
	"net/http"

	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/middleware"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/csrf"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CSRFHandler issues anti-forgery tokens
type CSRFHandler struct {
	codec *csrf.Codec
}

// NewCSRFHandler creates a CSRF token handler
func NewCSRFHandler(codec *csrf.Codec) *CSRFHandler {
	return &CSRFHandler{codec: codec}
}

// IssueToken hands the client a fresh token bound to its current session.
// The endpoint is public: anonymous callers get a token bound to the shared
// anonymous identity, which stops working the moment they log in and must be
// refreshed. Clients call this again after any 403 carrying CSRF_INVALID.
func (h *CSRFHandler) IssueToken(c echo.Context) error {
	binding := middleware.SessionBindingFromRequest(c, h.codec)

	token, err := h.codec.Issue(binding)
	if err != nil {
		logger.FromContext(c).Error("Failed to issue CSRF token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to issue token",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"csrfToken": token,
		},
	})
}
