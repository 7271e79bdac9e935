package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/messaging"
	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/middleware"
	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/model"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/logger"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/tenantdb"
	"github.com/zhanikpanik/restaurant-checklist-sub001/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// allowedTransitions is the order status machine. A missing key means the
// status is terminal.
var allowedTransitions = map[string][]string{
	model.OrderStatusPending:    {model.OrderStatusSubmitted, model.OrderStatusCancelled},
	model.OrderStatusSubmitted:  {model.OrderStatusDispatched, model.OrderStatusCancelled},
	model.OrderStatusDispatched: {model.OrderStatusDelivered, model.OrderStatusCancelled},
}

// OrderHandler manages procurement orders. The publisher is optional; when it
// is nil dispatch events are simply not emitted.
type OrderHandler struct {
	sessions  *tenantdb.SessionManager
	publisher *messaging.Publisher
}

// NewOrderHandler creates an order handler
func NewOrderHandler(sessions *tenantdb.SessionManager, publisher *messaging.Publisher) *OrderHandler {
	return &OrderHandler{sessions: sessions, publisher: publisher}
}

// OrderItemRequest is one cart line
type OrderItemRequest struct {
	ProductID uint    `json:"product_id"`
	Quantity  float64 `json:"quantity"`
}

// CreateOrderRequest represents the cart submission payload
type CreateOrderRequest struct {
	SupplierID *uint              `json:"supplier_id"`
	Comment    string             `json:"comment"`
	Items      []OrderItemRequest `json:"items"`
}

// UpdateStatusRequest represents the status change payload
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// CreateOrder submits a cart as a new order. Product name, unit and price are
// copied from the catalog inside the same transaction, so an order always
// reflects the catalog at submission time.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	log := logger.FromContext(c)
	scope := middleware.ScopeFromEcho(c)

	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid request format",
		})
	}
	if len(req.Items) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Order must contain at least one item",
		})
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"success": false,
				"error":   fmt.Sprintf("Invalid quantity for product %d", item.ProductID),
			})
		}
	}

	order := model.Order{
		RestaurantID: scope.RestaurantID,
		SupplierID:   req.SupplierID,
		Status:       model.OrderStatusSubmitted,
		Comment:      req.Comment,
		CreatedBy:    scope.UserID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err := h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		productIDs := make([]uint, 0, len(req.Items))
		for _, item := range req.Items {
			productIDs = append(productIDs, item.ProductID)
		}

		var products []model.Product
		if err := tx.Where("id IN ?", productIDs).Find(&products).Error; err != nil {
			return err
		}
		byID := make(map[uint]model.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		for _, item := range req.Items {
			product, ok := byID[item.ProductID]
			if !ok {
				return fmt.Errorf("product %d not found: %w", item.ProductID, gorm.ErrRecordNotFound)
			}
			order.Items = append(order.Items, model.OrderItem{
				RestaurantID: scope.RestaurantID,
				ProductID:    product.ID,
				Name:         product.Name,
				Unit:         product.Unit,
				Quantity:     item.Quantity,
				Price:        product.Price,
			})
		}

		return tx.Create(&order).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"success": false,
				"error":   "Order references an unknown product",
			})
		}
		log.Error("Failed to create order", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to create order",
		})
	}

	prometheus.RecordOrderOperation("create")
	log.Info("Order created",
		zap.Uint("order_id", order.ID),
		zap.Int("items", len(order.Items)))

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    order,
	})
}

// ListOrders returns the restaurant's orders, newest first, optionally
// filtered by status
func (h *OrderHandler) ListOrders(c echo.Context) error {
	scope := middleware.ScopeFromEcho(c)
	prometheus.RecordOrderOperation("list")
	defer prometheus.TrackDBOperation("select")(time.Now())

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			offset = parsed
		}
	}

	var orders []model.Order
	err := h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		query := tx.Preload("Items").Order("created_at DESC").Limit(limit).Offset(offset)
		if status := c.QueryParam("status"); status != "" {
			query = query.Where("status = ?", status)
		}
		return query.Find(&orders).Error
	})
	if err != nil {
		logger.FromContext(c).Error("Failed to list orders", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to fetch orders",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    orders,
	})
}

// GetOrder returns one order with its items
func (h *OrderHandler) GetOrder(c echo.Context) error {
	scope := middleware.ScopeFromEcho(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid order ID",
		})
	}
	prometheus.RecordOrderOperation("get")

	var order model.Order
	err = h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		return tx.Preload("Items").First(&order, uint(id)).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"success": false,
				"error":   "Order not found",
			})
		}
		logger.FromContext(c).Error("Failed to fetch order", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to fetch order",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    order,
	})
}

// UpdateOrderStatus moves an order through its lifecycle. Dispatching stamps
// the dispatch time and, once the transaction has committed, publishes an
// event for downstream consumers.
func (h *OrderHandler) UpdateOrderStatus(c echo.Context) error {
	log := logger.FromContext(c)
	scope := middleware.ScopeFromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid order ID",
		})
	}

	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Invalid request format",
		})
	}

	var order model.Order
	var invalidTransition bool
	err = h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&order, uint(id)).Error; err != nil {
			return err
		}

		if !transitionAllowed(order.Status, req.Status) {
			invalidTransition = true
			return gorm.ErrInvalidData
		}

		order.Status = req.Status
		if req.Status == model.OrderStatusDispatched {
			now := time.Now()
			order.DispatchedAt = &now
		}
		return tx.Save(&order).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"success": false,
				"error":   "Order not found",
			})
		}
		if invalidTransition {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{
				"success": false,
				"error":   fmt.Sprintf("Cannot change status from %s to %s", order.Status, req.Status),
			})
		}
		log.Error("Failed to update order status", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to update order",
		})
	}

	prometheus.RecordOrderOperation("status_" + req.Status)

	if req.Status == model.OrderStatusDispatched {
		h.publishDispatched(log, order)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    order,
	})
}

// ExportOrders returns the restaurant's complete order history with items.
// The endpoint is expensive and sits behind the tightest non-auth rate limit.
func (h *OrderHandler) ExportOrders(c echo.Context) error {
	scope := middleware.ScopeFromEcho(c)
	prometheus.RecordOrderOperation("export")
	defer prometheus.TrackDBOperation("select")(time.Now())

	var orders []model.Order
	err := h.sessions.WithTenantTransaction(c.Request().Context(), scope.RestaurantID, func(tx *gorm.DB) error {
		query := tx.Preload("Items").Order("created_at DESC")
		if from := c.QueryParam("from"); from != "" {
			query = query.Where("created_at >= ?", from)
		}
		if to := c.QueryParam("to"); to != "" {
			query = query.Where("created_at < ?", to)
		}
		return query.Find(&orders).Error
	})
	if err != nil {
		logger.FromContext(c).Error("Failed to export orders", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to export orders",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"restaurant_id": scope.RestaurantID,
			"exported_at":   time.Now().UTC().Format(time.RFC3339),
			"count":         len(orders),
			"orders":        orders,
		},
	})
}

// publishDispatched emits the dispatch event after commit. Publishing is best
// effort; a broker outage must not roll back an already dispatched order.
func (h *OrderHandler) publishDispatched(log *zap.Logger, order model.Order) {
	if h.publisher == nil {
		return
	}

	event := messaging.OrderDispatchedEvent{
		OrderID:      order.ID,
		RestaurantID: order.RestaurantID,
		SupplierID:   order.SupplierID,
		ItemCount:    len(order.Items),
		DispatchedAt: time.Now(),
	}
	if order.DispatchedAt != nil {
		event.DispatchedAt = *order.DispatchedAt
	}

	if err := h.publisher.PublishOrderDispatched(event); err != nil {
		prometheus.OrderDispatchCounter.WithLabelValues("error").Inc()
		log.Error("Failed to publish dispatch event",
			zap.Uint("order_id", order.ID),
			zap.Error(err))
		return
	}
	prometheus.OrderDispatchCounter.WithLabelValues("published").Inc()
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
