package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/middleware"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/config"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/jwtutil"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/logger"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/tenantdb"
	"github.com/zhanikpanik/restaurant-checklist-sub001/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler handles login, logout and session introspection
type AuthHandler struct {
	sessions *tenantdb.SessionManager
	cfg      *config.Config
}

// NewAuthHandler creates an auth handler
func NewAuthHandler(sessions *tenantdb.SessionManager, cfg *config.Config) *AuthHandler {
	return &AuthHandler{sessions: sessions, cfg: cfg}
}

// LoginRequest represents the login payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userRow struct {
	ID           uint
	Email        string
	PasswordHash string
	Name         string
	RestaurantID string
	Role         string
	Active       bool
}

// Login authenticates a staff member and establishes the session cookies.
// The user lookup runs in admin mode: the caller's restaurant is not known
// until the user record is found, so the query carries its own email filter.
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.AuthAttemptsCounter.Inc()

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid request format",
		})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Email and password are required",
		})
	}

	var user userRow
	err := h.sessions.WithoutTenant(c.Request().Context(), func(conn *sql.Conn) error {
		defer prometheus.TrackDBOperation("select")(time.Now())
		return conn.QueryRowContext(c.Request().Context(),
			`SELECT id, email, password, name, restaurant_id, role, active
			 FROM users WHERE email = $1 AND deleted_at IS NULL`,
			req.Email,
		).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name,
			&user.RestaurantID, &user.Role, &user.Active)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Login failed: unknown email", zap.String("email", req.Email))
			prometheus.RecordAuthError("unknown_user")
			return h.invalidCredentials(c)
		}
		log.Error("Login failed: user lookup error", zap.Error(err))
		prometheus.RecordAuthError("lookup_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Login failed",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Warn("Login failed: wrong password", zap.Uint("user_id", user.ID))
		prometheus.RecordAuthError("wrong_password")
		return h.invalidCredentials(c)
	}

	if !user.Active {
		log.Warn("Login failed: account disabled", zap.Uint("user_id", user.ID))
		prometheus.RecordAuthError("account_disabled")
		return h.invalidCredentials(c)
	}

	token, err := jwtutil.GenerateToken(user.Email, user.ID, user.RestaurantID, user.Role)
	if err != nil {
		log.Error("Failed to generate session token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Login failed",
		})
	}

	maxAge := h.cfg.JWT.ExpirationHours * 3600
	h.setSessionCookie(c, middleware.SessionCookieName, token, maxAge)
	h.setSessionCookie(c, middleware.RestaurantCookieName, user.RestaurantID, maxAge)

	prometheus.AuthSuccessCounter.Inc()
	log.Info("User logged in",
		zap.Uint("user_id", user.ID),
		zap.String("restaurant_id", user.RestaurantID))

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"user": echo.Map{
				"id":            user.ID,
				"email":         user.Email,
				"name":          user.Name,
				"role":          user.Role,
				"restaurant_id": user.RestaurantID,
			},
		},
	})
}

// Logout clears the session cookies
func (h *AuthHandler) Logout(c echo.Context) error {
	h.setSessionCookie(c, middleware.SessionCookieName, "", -1)
	h.setSessionCookie(c, middleware.RestaurantCookieName, "", -1)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Logged out",
	})
}

// Me returns the identity of the current session
func (h *AuthHandler) Me(c echo.Context) error {
	scope := middleware.ScopeFromEcho(c)
	if scope == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"success": false,
			"error":   "Authentication required",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"user": echo.Map{
				"id":            scope.UserID,
				"email":         scope.Email,
				"role":          scope.Role,
				"restaurant_id": scope.RestaurantID,
			},
		},
	})
}

// invalidCredentials is the one response for every credential failure so the
// endpoint does not leak which accounts exist
func (h *AuthHandler) invalidCredentials(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"success": false,
		"error":   "Invalid email or password",
	})
}

func (h *AuthHandler) setSessionCookie(c echo.Context, name, value string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.Server.Env == "production",
		SameSite: http.SameSiteLaxMode,
	})
}
