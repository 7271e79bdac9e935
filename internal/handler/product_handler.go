package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/middleware"
	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/model"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/logger"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/tenantdb"
	"github.com/zhanikpanik/restaurant-checklist-sub001/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProductHandler manages the inventory catalog of one restaurant
type ProductHandler struct {
	sessions *tenantdb.SessionManager
}

// NewProductHandler creates a product handler
func NewProductHandler(sessions *tenantdb.SessionManager) *ProductHandler {
	return &ProductHandler{sessions: sessions}
}

// ProductRequest represents the create/update payload
type ProductRequest struct {
	Name        string  `json:"name"`
	Unit        string  `json:"unit"`
	Quantity    float64 `json:"quantity"`
	MinQuantity float64 `json:"min_quantity"`
	Price       float64 `json:"price"`
	CategoryID  *uint   `json:"category_id"`
	SectionID   *uint   `json:"section_id"`
	SupplierID  *uint   `json:"supplier_id"`
}

// ListProducts returns the restaurant's products, optionally filtered by
// category, section or low stock (quantity at or below the minimum).
func (h *ProductHandler) ListProducts(c echo.Context) error {
	scope := middleware.ScopeFromEcho(c)
	prometheus.RecordProductOperation("list")
	defer prometheus.TrackDBOperation("select")(time.Now())

	var products []model.Product
	err := h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		query := tx.Where("is_active = ?", true)

		if categoryID := c.QueryParam("category_id"); categoryID != "" {
			query = query.Where("category_id = ?", categoryID)
		}
		if sectionID := c.QueryParam("section_id"); sectionID != "" {
			query = query.Where("section_id = ?", sectionID)
		}
		if c.QueryParam("low_stock") == "true" {
			query = query.Where("quantity <= min_quantity")
		}

		return query.Order("name").Find(&products).Error
	})
	if err != nil {
		logger.FromContext(c).Error("Failed to list products", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to fetch products",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    products,
	})
}

// GetProduct returns one product by ID
func (h *ProductHandler) GetProduct(c echo.Context) error {
	scope := middleware.ScopeFromEcho(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid product ID",
		})
	}
	prometheus.RecordProductOperation("get")

	var product model.Product
	err = h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		return tx.First(&product, uint(id)).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"success": false,
				"error":   "Product not found",
			})
		}
		logger.FromContext(c).Error("Failed to fetch product", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to fetch product",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    product,
	})
}

// CreateProduct adds a product to the restaurant's catalog
func (h *ProductHandler) CreateProduct(c echo.Context) error {
	log := logger.FromContext(c)
	scope := middleware.ScopeFromEcho(c)

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid request format",
		})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Product name is required",
		})
	}

	product := model.Product{
		RestaurantID: scope.RestaurantID,
		Name:         req.Name,
		Unit:         req.Unit,
		Quantity:     req.Quantity,
		MinQuantity:  req.MinQuantity,
		Price:        req.Price,
		CategoryID:   req.CategoryID,
		SectionID:    req.SectionID,
		SupplierID:   req.SupplierID,
		IsActive:     true,
	}
	if product.Unit == "" {
		product.Unit = "pcs"
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err := h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		return tx.Create(&product).Error
	})
	if err != nil {
		log.Error("Failed to create product", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to create product",
		})
	}

	prometheus.RecordProductOperation("create")
	log.Info("Product created",
		zap.Uint("product_id", product.ID),
		zap.String("name", product.Name))

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    product,
	})
}

// UpdateProduct updates one product
func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	log := logger.FromContext(c)
	scope := middleware.ScopeFromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid product ID",
		})
	}

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid request format",
		})
	}

	var product model.Product
	err = h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		if err := tx.First(&product, uint(id)).Error; err != nil {
			return err
		}
		product.Name = req.Name
		product.Unit = req.Unit
		product.Quantity = req.Quantity
		product.MinQuantity = req.MinQuantity
		product.Price = req.Price
		product.CategoryID = req.CategoryID
		product.SectionID = req.SectionID
		product.SupplierID = req.SupplierID
		return tx.Save(&product).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"success": false,
				"error":   "Product not found",
			})
		}
		log.Error("Failed to update product", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to update product",
		})
	}

	prometheus.RecordProductOperation("update")
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    product,
	})
}

// DeleteProduct soft-deletes one product
func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	log := logger.FromContext(c)
	scope := middleware.ScopeFromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid product ID",
		})
	}

	err = h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		result := tx.Delete(&model.Product{}, uint(id))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"success": false,
				"error":   "Product not found",
			})
		}
		log.Error("Failed to delete product", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to delete product",
		})
	}

	prometheus.RecordProductOperation("delete")
	log.Info("Product deleted", zap.Uint64("product_id", id))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Product deleted",
	})
}
