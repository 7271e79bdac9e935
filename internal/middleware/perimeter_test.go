package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/model"
	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/tenant"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/config"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/csrf"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/jwtutil"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/ratelimit"
	"github.com/zhanikpanik/restaurant-checklist-sub001/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	prometheus.InitMetrics(&config.Config{Metrics: config.MetricsConfig{Prefix: "middleware_test"}})
	jwtutil.Initialize(&config.JWTConfig{SigningKey: "perimeter-test-key", ExpirationHours: 1})
	os.Exit(m.Run())
}

// invoke runs one middleware against a request and reports whether the inner
// handler was reached
func invoke(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	reached := false
	handler := mw(func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec, reached
}

func sessionCookie(t *testing.T, userID uint, restaurantID string) *http.Cookie {
	t.Helper()
	token, err := jwtutil.GenerateToken("staff@example.com", userID, restaurantID, "staff")
	require.NoError(t, err)
	return &http.Cookie{Name: SessionCookieName, Value: token}
}

func TestAuthRejectsMissingSession(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)

	rec, reached := invoke(t, Auth, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)
	assert.Contains(t, rec.Body.String(), "Authentication required")
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "not-a-jwt"})

	rec, reached := invoke(t, Auth, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)
}

func TestAuthEstablishesScope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.AddCookie(sessionCookie(t, 42, "rest-a"))

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	var scope *RequestScope
	handler := Auth(func(c echo.Context) error {
		scope = ScopeFromEcho(c)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))

	require.NotNil(t, scope)
	assert.Equal(t, uint(42), scope.UserID)
	assert.Equal(t, "rest-a", scope.RestaurantID)
}

func TestCSRFSkipsSafeMethods(t *testing.T) {
	codec := csrf.NewCodec("csrf-test-key")

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		req := httptest.NewRequest(method, "/api/products", nil)
		rec, reached := invoke(t, CSRF(codec), req)
		assert.True(t, reached, "%s must pass without a token", method)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestCSRFRejectsMissingToken(t *testing.T) {
	codec := csrf.NewCodec("csrf-test-key")
	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)

	rec, reached := invoke(t, CSRF(codec), req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, reached)
	// The failure class must be detectable so clients refresh their token
	assert.Contains(t, rec.Body.String(), "CSRF")
}

func TestCSRFAcceptsValidToken(t *testing.T) {
	codec := csrf.NewCodec("csrf-test-key")
	cookie := sessionCookie(t, 42, "rest-a")

	claims, err := jwtutil.ValidateToken(cookie.Value)
	require.NoError(t, err)
	token, err := codec.Issue(codec.SessionBinding(cookie.Value, claims.UserID))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.AddCookie(cookie)
	req.Header.Set(csrf.HeaderName, token)

	rec, reached := invoke(t, CSRF(codec), req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, reached)
}

func TestCSRFRejectsTokenFromAnotherSession(t *testing.T) {
	codec := csrf.NewCodec("csrf-test-key")

	otherCookie := sessionCookie(t, 7, "rest-b")
	token, err := codec.Issue(codec.SessionBinding(otherCookie.Value, 7))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.AddCookie(sessionCookie(t, 42, "rest-a"))
	req.Header.Set(csrf.HeaderName, token)

	rec, reached := invoke(t, CSRF(codec), req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, reached)
}

func TestRateLimitSetsHeadersOnSuccess(t *testing.T) {
	store := ratelimit.NewMemoryStore(0)
	t.Cleanup(func() { store.Close() })
	limiter := ratelimit.NewLimiter(store, zap.NewNop())
	mw := RateLimit(limiter, ratelimit.Config{Window: time.Minute, MaxRequests: 5})

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	rec, reached := invoke(t, mw, req)

	assert.True(t, reached)
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	store := ratelimit.NewMemoryStore(0)
	t.Cleanup(func() { store.Close() })
	limiter := ratelimit.NewLimiter(store, zap.NewNop())
	mw := RateLimit(limiter, ratelimit.Config{Window: time.Minute, MaxRequests: 2})

	var rec *httptest.ResponseRecorder
	var reached bool
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.AddCookie(&http.Cookie{Name: RestaurantCookieName, Value: "rest-a"})
		rec, reached = invoke(t, mw, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, reached)
	assert.Contains(t, rec.Body.String(), "retry_after")

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retryAfter, 1)
}

func TestRateLimitKeysByRestaurantCookie(t *testing.T) {
	store := ratelimit.NewMemoryStore(0)
	t.Cleanup(func() { store.Close() })
	limiter := ratelimit.NewLimiter(store, zap.NewNop())
	mw := RateLimit(limiter, ratelimit.Config{Window: time.Minute, MaxRequests: 1})

	reqA := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	reqA.AddCookie(&http.Cookie{Name: RestaurantCookieName, Value: "rest-a"})
	_, reached := invoke(t, mw, reqA)
	assert.True(t, reached)

	// A different restaurant behind the same IP gets its own window
	reqB := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	reqB.AddCookie(&http.Cookie{Name: RestaurantCookieName, Value: "rest-b"})
	_, reached = invoke(t, mw, reqB)
	assert.True(t, reached)
}

type stubResolver struct {
	restaurants map[string]*model.Restaurant
	err         error
}

func (s *stubResolver) Resolve(ctx context.Context, id string) (*model.Restaurant, error) {
	if s.err != nil {
		return nil, s.err
	}
	restaurant, ok := s.restaurants[id]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	return restaurant, nil
}

func TestRequireRestaurantRejectsMissingCookie(t *testing.T) {
	mw := RequireRestaurant(&stubResolver{})
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)

	rec, reached := invoke(t, mw, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)
}

func TestRequireRestaurantRejectsUnknownRestaurant(t *testing.T) {
	mw := RequireRestaurant(&stubResolver{restaurants: map[string]*model.Restaurant{}})
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.AddCookie(&http.Cookie{Name: RestaurantCookieName, Value: "rest-ghost"})

	rec, reached := invoke(t, mw, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, reached)
	assert.Contains(t, rec.Body.String(), "Invalid restaurant")
}

func TestRequireRestaurantRejectsInactiveRestaurant(t *testing.T) {
	mw := RequireRestaurant(&stubResolver{restaurants: map[string]*model.Restaurant{
		"rest-a": {ID: "rest-a", Name: "Closed Cafe", Active: false},
	}})
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.AddCookie(&http.Cookie{Name: RestaurantCookieName, Value: "rest-a"})

	rec, reached := invoke(t, mw, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, reached)
}

func TestRequireRestaurantRejectsClaimsMismatch(t *testing.T) {
	mw := RequireRestaurant(&stubResolver{restaurants: map[string]*model.Restaurant{
		"rest-a": {ID: "rest-a", Name: "Cafe A", Active: true},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.AddCookie(&http.Cookie{Name: RestaurantCookieName, Value: "rest-a"})

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	// Session claims say rest-b; a tampered cookie must not win
	SetScope(c, &RequestScope{UserID: 42, RestaurantID: "rest-b"})

	reached := false
	handler := mw(func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, reached)
}

func TestRequireRestaurantEstablishesTenant(t *testing.T) {
	mw := RequireRestaurant(&stubResolver{restaurants: map[string]*model.Restaurant{
		"rest-a": {ID: "rest-a", Name: "Cafe A", Active: true},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.AddCookie(&http.Cookie{Name: RestaurantCookieName, Value: "rest-a"})

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	SetScope(c, &RequestScope{UserID: 42, RestaurantID: "rest-a"})

	var scope *RequestScope
	handler := mw(func(c echo.Context) error {
		scope = ScopeFromEcho(c)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, scope)
	assert.Equal(t, "rest-a", scope.RestaurantID)
}

func TestPerimeterOrderRateLimitBeforeAuth(t *testing.T) {
	// An unauthenticated flood must be counted: the limiter sits in front of
	// authentication in the chain main.go builds.
	store := ratelimit.NewMemoryStore(0)
	t.Cleanup(func() { store.Close() })
	limiter := ratelimit.NewLimiter(store, zap.NewNop())

	e := echo.New()
	e.POST("/api/auth/login",
		func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		RateLimit(limiter, ratelimit.Config{Window: time.Minute, MaxRequests: 2}),
		Auth)

	var rec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{}"))
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)
	}

	// Third request hits the limiter, not the auth layer
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
