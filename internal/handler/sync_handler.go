package handler

import (
	"net/http"
	"time"

	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/middleware"
	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/model"
	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/pos"
	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/tenant"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/logger"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/tenantdb"
	"github.com/zhanikpanik/restaurant-checklist-sub001/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SyncerFactory builds a POS client for one restaurant's credentials. Tests
// substitute a stub here.
type SyncerFactory func(baseURL, token string) pos.Syncer

// SyncHandler pulls the restaurant's catalog from its POS system and upserts
// it into the local tables. Records are matched by their POS ID; local rows
// without one are left alone.
type SyncHandler struct {
	sessions  *tenantdb.SessionManager
	resolver  tenant.Resolver
	newSyncer SyncerFactory
}

// NewSyncHandler creates a POS sync handler
func NewSyncHandler(sessions *tenantdb.SessionManager, resolver tenant.Resolver, factory SyncerFactory) *SyncHandler {
	if factory == nil {
		factory = func(baseURL, token string) pos.Syncer {
			return pos.NewClient(baseURL, token)
		}
	}
	return &SyncHandler{sessions: sessions, resolver: resolver, newSyncer: factory}
}

// SyncFromPOS fetches suppliers, categories and ingredients from the POS and
// reconciles them into the restaurant's catalog in one transaction.
func (h *SyncHandler) SyncFromPOS(c echo.Context) error {
	log := logger.FromContext(c)
	scope := middleware.ScopeFromEcho(c)
	ctx := c.Request().Context()

	restaurant, err := h.resolver.Resolve(ctx, scope.RestaurantID)
	if err != nil {
		log.Error("Failed to resolve restaurant for sync", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Failed to resolve restaurant",
		})
	}
	if restaurant.PosToken == "" || restaurant.PosBaseURL == "" {
		return c.JSON(http.StatusConflict, echo.Map{
			"success": false,
			"error":   "Restaurant has no POS credentials configured",
		})
	}

	syncer := h.newSyncer(restaurant.PosBaseURL, restaurant.PosToken)

	suppliers, err := syncer.FetchSuppliers(ctx)
	if err != nil {
		log.Error("POS supplier fetch failed", zap.Error(err))
		return h.posUnavailable(c)
	}
	categories, err := syncer.FetchCategories(ctx)
	if err != nil {
		log.Error("POS category fetch failed", zap.Error(err))
		return h.posUnavailable(c)
	}
	ingredients, err := syncer.FetchIngredients(ctx)
	if err != nil {
		log.Error("POS ingredient fetch failed", zap.Error(err))
		return h.posUnavailable(c)
	}

	var created, updated int
	defer prometheus.TrackDBOperation("sync")(time.Now())
	err = h.sessions.WithTenantTransaction(ctx, scope.RestaurantID, func(tx *gorm.DB) error {
		categoryIDs := make(map[string]uint, len(categories))

		for _, rec := range suppliers {
			var supplier model.Supplier
			err := tx.Where("pos_id = ?", rec.ID).First(&supplier).Error
			switch {
			case err == gorm.ErrRecordNotFound:
				supplier = model.Supplier{
					RestaurantID: scope.RestaurantID,
					Name:         rec.Name,
					Phone:        rec.Phone,
					PosID:        rec.ID,
					IsActive:     true,
					CreatedBy:    scope.UserID,
				}
				if err := tx.Create(&supplier).Error; err != nil {
					return err
				}
				created++
			case err != nil:
				return err
			default:
				supplier.Name = rec.Name
				supplier.Phone = rec.Phone
				if err := tx.Save(&supplier).Error; err != nil {
					return err
				}
				updated++
			}
		}

		for _, rec := range categories {
			var category model.Category
			err := tx.Where("pos_id = ?", rec.ID).First(&category).Error
			switch {
			case err == gorm.ErrRecordNotFound:
				category = model.Category{
					RestaurantID: scope.RestaurantID,
					Name:         rec.Name,
					PosID:        rec.ID,
				}
				if err := tx.Create(&category).Error; err != nil {
					return err
				}
				created++
			case err != nil:
				return err
			default:
				category.Name = rec.Name
				if err := tx.Save(&category).Error; err != nil {
					return err
				}
				updated++
			}
			categoryIDs[rec.ID] = category.ID
		}

		for _, rec := range ingredients {
			var product model.Product
			err := tx.Where("pos_id = ?", rec.ID).First(&product).Error
			switch {
			case err == gorm.ErrRecordNotFound:
				product = model.Product{
					RestaurantID: scope.RestaurantID,
					Name:         rec.Name,
					Unit:         rec.Unit,
					Quantity:     rec.Left,
					PosID:        rec.ID,
					IsActive:     true,
				}
				if id, ok := categoryIDs[rec.CategoryID]; ok {
					product.CategoryID = &id
				}
				if err := tx.Create(&product).Error; err != nil {
					return err
				}
				created++
			case err != nil:
				return err
			default:
				product.Name = rec.Name
				product.Unit = rec.Unit
				product.Quantity = rec.Left
				if id, ok := categoryIDs[rec.CategoryID]; ok {
					product.CategoryID = &id
				}
				if err := tx.Save(&product).Error; err != nil {
					return err
				}
				updated++
			}
		}

		return nil
	})
	if err != nil {
		log.Error("POS sync failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "Sync failed",
		})
	}

	log.Info("POS sync completed",
		zap.Int("created", created),
		zap.Int("updated", updated))

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"created": created,
			"updated": updated,
		},
	})
}

func (h *SyncHandler) posUnavailable(c echo.Context) error {
	return c.JSON(http.StatusBadGateway, echo.Map{
		"success": false,
		"error":   "POS system unavailable",
	})
}
