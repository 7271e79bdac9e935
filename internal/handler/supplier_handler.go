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

// SupplierHandler manages the supplier catalog of one restaurant. Every
// query runs through a tenant-scoped session, so no handler repeats the
// restaurant filter: the database policies do the fencing.
type SupplierHandler struct {
	sessions *tenantdb.SessionManager
}

// NewSupplierHandler creates a supplier handler
func NewSupplierHandler(sessions *tenantdb.SessionManager) *SupplierHandler {
	return &SupplierHandler{sessions: sessions}
}

// SupplierRequest represents the create/update payload
type SupplierRequest struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Address       string `json:"address"`
	Notes         string `json:"notes"`
}

// ListSuppliers returns all suppliers of the caller's restaurant
func (h *SupplierHandler) ListSuppliers(c echo.Context) error {
	scope := middleware.ScopeFromEcho(c)
	prometheus.RecordSupplierOperation("list")
	defer prometheus.TrackDBOperation("select")(time.Now())

	var suppliers []model.Supplier
	err := h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		return tx.Order("name").Find(&suppliers).Error
	})
	if err != nil {
		logger.FromContext(c).Error("Failed to list suppliers", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to fetch suppliers",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    suppliers,
	})
}

// GetSupplier returns one supplier by ID
func (h *SupplierHandler) GetSupplier(c echo.Context) error {
	scope := middleware.ScopeFromEcho(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid supplier ID",
		})
	}
	prometheus.RecordSupplierOperation("get")

	var supplier model.Supplier
	err = h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		return tx.First(&supplier, uint(id)).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"success": false,
				"error":   "Supplier not found",
			})
		}
		logger.FromContext(c).Error("Failed to fetch supplier", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to fetch supplier",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    supplier,
	})
}

// CreateSupplier adds a supplier to the caller's restaurant
func (h *SupplierHandler) CreateSupplier(c echo.Context) error {
	log := logger.FromContext(c)
	scope := middleware.ScopeFromEcho(c)

	var req SupplierRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid request format",
		})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Supplier name is required",
		})
	}

	supplier := model.Supplier{
		RestaurantID:  scope.RestaurantID,
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
		Notes:         req.Notes,
		IsActive:      true,
		CreatedBy:     scope.UserID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err := h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		return tx.Create(&supplier).Error
	})
	if err != nil {
		log.Error("Failed to create supplier", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to create supplier",
		})
	}

	prometheus.RecordSupplierOperation("create")
	log.Info("Supplier created",
		zap.Uint("supplier_id", supplier.ID),
		zap.String("name", supplier.Name))

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    supplier,
	})
}

// UpdateSupplier updates one supplier
func (h *SupplierHandler) UpdateSupplier(c echo.Context) error {
	log := logger.FromContext(c)
	scope := middleware.ScopeFromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid supplier ID",
		})
	}

	var req SupplierRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid request format",
		})
	}

	var supplier model.Supplier
	err = h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		if err := tx.First(&supplier, uint(id)).Error; err != nil {
			return err
		}
		supplier.Name = req.Name
		supplier.ContactPerson = req.ContactPerson
		supplier.Phone = req.Phone
		supplier.Email = req.Email
		supplier.Address = req.Address
		supplier.Notes = req.Notes
		return tx.Save(&supplier).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"success": false,
				"error":   "Supplier not found",
			})
		}
		log.Error("Failed to update supplier", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to update supplier",
		})
	}

	prometheus.RecordSupplierOperation("update")
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    supplier,
	})
}

// DeleteSupplier soft-deletes one supplier
func (h *SupplierHandler) DeleteSupplier(c echo.Context) error {
	log := logger.FromContext(c)
	scope := middleware.ScopeFromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid supplier ID",
		})
	}

	err = h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		result := tx.Delete(&model.Supplier{}, uint(id))
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
				"error":   "Supplier not found",
			})
		}
		log.Error("Failed to delete supplier", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to delete supplier",
		})
	}

	prometheus.RecordSupplierOperation("delete")
	log.Info("Supplier deleted", zap.Uint64("supplier_id", id))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Supplier deleted",
	})
}
