package middleware

import (
	"errors"
	"net/http"

	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/tenant"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/logger"
	"github.com/zhanikpanik/restaurant-checklist-sub001/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequireRestaurant resolves and verifies the caller's restaurant before any
// business handler runs. The restaurant ID comes from the cookie set at
// login; it must name a known, active restaurant and agree with the
// restaurant in the caller's session claims.
func RequireRestaurant(resolver tenant.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			cookie, err := c.Cookie(RestaurantCookieName)
			if err != nil || cookie.Value == "" {
				log.Warn("Missing restaurant cookie")
				prometheus.TenantRejectionsCounter.WithLabelValues("missing_cookie").Inc()
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success": false,
					"error":   "Authentication required",
				})
			}
			restaurantID := cookie.Value

			scope := ScopeFromEcho(c)
			if scope != nil && scope.RestaurantID != "" && scope.RestaurantID != restaurantID {
				log.Warn("Restaurant cookie does not match session claims",
					zap.String("cookie_restaurant", restaurantID),
					zap.String("session_restaurant", scope.RestaurantID))
				prometheus.TenantRejectionsCounter.WithLabelValues("claims_mismatch").Inc()
				return c.JSON(http.StatusForbidden, echo.Map{
					"success": false,
					"error":   "Invalid restaurant",
				})
			}

			restaurant, err := resolver.Resolve(c.Request().Context(), restaurantID)
			if err != nil {
				if errors.Is(err, tenant.ErrNotFound) {
					log.Warn("Unknown restaurant", zap.String("restaurant_id", restaurantID))
					prometheus.TenantRejectionsCounter.WithLabelValues("unknown").Inc()
					return c.JSON(http.StatusForbidden, echo.Map{
						"success": false,
						"error":   "Invalid restaurant",
					})
				}
				log.Error("Failed to resolve restaurant",
					zap.String("restaurant_id", restaurantID),
					zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{
					"success": false,
					"error":   "Failed to resolve restaurant",
				})
			}

			if !restaurant.Active {
				log.Warn("Inactive restaurant", zap.String("restaurant_id", restaurantID))
				prometheus.TenantRejectionsCounter.WithLabelValues("inactive").Inc()
				return c.JSON(http.StatusForbidden, echo.Map{
					"success": false,
					"error":   "Invalid restaurant",
				})
			}

			if scope == nil {
				scope = &RequestScope{}
			}
			scope.RestaurantID = restaurant.ID
			SetScope(c, scope)

			c.Set("logger", log.With(zap.String("restaurant_id", restaurant.ID)))

			return next(c)
		}
	}
}
