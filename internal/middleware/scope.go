package middleware

import (
	"github.com/labstack/echo/v4"
)

// Cookie names set by the authentication layer and read by the perimeter
const (
	SessionCookieName    = "session_token"
	RestaurantCookieName = "restaurant_id"
)

const scopeKey = "request_scope"

// RequestScope is the typed request context the perimeter establishes and
// business handlers consume. It replaces ad-hoc per-key context values for
// the identity and tenant of the current request.
type RequestScope struct {
	UserID       uint
	Email        string
	Role         string
	RestaurantID string
}

// SetScope stores the request scope in the Echo context
func SetScope(c echo.Context, scope *RequestScope) {
	c.Set(scopeKey, scope)
}

// ScopeFromEcho retrieves the request scope, or nil when no identity has
// been established yet
func ScopeFromEcho(c echo.Context) *RequestScope {
	scope, ok := c.Get(scopeKey).(*RequestScope)
	if !ok {
		return nil
	}
	return scope
}
