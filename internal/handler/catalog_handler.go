package handler

import (
	"errors"
	"net/http"

	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/middleware"
	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/model"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/logger"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/tenantdb"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CatalogHandler manages sections and categories, the structure products
// hang off of
type CatalogHandler struct {
	sessions *tenantdb.SessionManager
}

// NewCatalogHandler creates a catalog handler
func NewCatalogHandler(sessions *tenantdb.SessionManager) *CatalogHandler {
	return &CatalogHandler{sessions: sessions}
}

// SectionRequest represents the section create payload
type SectionRequest struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// CategoryRequest represents the category create payload
type CategoryRequest struct {
	Name      string `json:"name"`
	SectionID *uint  `json:"section_id"`
}

// ListSections returns the restaurant's sections
func (h *CatalogHandler) ListSections(c echo.Context) error {
	scope := middleware.ScopeFromEcho(c)

	var sections []model.Section
	err := h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		return tx.Order("name").Find(&sections).Error
	})
	if err != nil {
		logger.FromContext(c).Error("Failed to list sections", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to fetch sections",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    sections,
	})
}

// CreateSection adds a section
func (h *CatalogHandler) CreateSection(c echo.Context) error {
	scope := middleware.ScopeFromEcho(c)

	var req SectionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid request format",
		})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Section name is required",
		})
	}

	section := model.Section{
		RestaurantID: scope.RestaurantID,
		Name:         req.Name,
		Emoji:        req.Emoji,
	}
	err := h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		return tx.Create(&section).Error
	})
	if err != nil {
		logger.FromContext(c).Error("Failed to create section", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to create section",
		})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    section,
	})
}

// ListCategories returns the restaurant's categories, optionally by section
func (h *CatalogHandler) ListCategories(c echo.Context) error {
	scope := middleware.ScopeFromEcho(c)

	var categories []model.Category
	err := h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		query := tx.Order("name")
		if sectionID := c.QueryParam("section_id"); sectionID != "" {
			query = query.Where("section_id = ?", sectionID)
		}
		return query.Find(&categories).Error
	})
	if err != nil {
		logger.FromContext(c).Error("Failed to list categories", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to fetch categories",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    categories,
	})
}

// CreateCategory adds a category, optionally attached to a section
func (h *CatalogHandler) CreateCategory(c echo.Context) error {
	scope := middleware.ScopeFromEcho(c)

	var req CategoryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid request format",
		})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Category name is required",
		})
	}

	category := model.Category{
		RestaurantID: scope.RestaurantID,
		Name:         req.Name,
		SectionID:    req.SectionID,
	}
	err := h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		if req.SectionID != nil {
			var section model.Section
			if err := tx.First(&section, *req.SectionID).Error; err != nil {
				return err
			}
		}
		return tx.Create(&category).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"success": false,
				"error":   "Section not found",
			})
		}
		logger.FromContext(c).Error("Failed to create category", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to create category",
		})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    category,
	})
}
