package database

import (
	"fmt"
	"log"

	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/model"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Initialize opens the database connection, configures the pool, runs
// migrations and applies the row-level-security policies.
func Initialize(cfg *config.DBConfig) error {
	var err error

	// Connect with PreferSimpleProtocol to prevent "prepared statement
	// already exists" errors behind connection poolers
	pgConfig := postgres.Config{
		DSN:                  cfg.GetDSN(),
		PreferSimpleProtocol: true,
	}

	DB, err = gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
	})
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		return err
	}

	// Configure connection pool
	sqlDB, err := DB.DB()
	if err != nil {
		log.Printf("Failed to get database connection: %v", err)
		return err
	}

	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// AutoMigrate will automatically create or update the table structure
	// based on our models
	err = DB.AutoMigrate(
		&model.Restaurant{},
		&model.User{},
		&model.Supplier{},
		&model.Section{},
		&model.Category{},
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := setupRowLevelSecurity(DB); err != nil {
		return fmt.Errorf("failed to apply row level security policies: %w", err)
	}

	fmt.Println("Database connected, migrated and RLS policies applied")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// tenantScopedTables lists every table carrying a restaurant_id column.
// The restaurants registry itself is deliberately not in this list.
var tenantScopedTables = []string{
	"users",
	"suppliers",
	"sections",
	"categories",
	"products",
	"orders",
	"order_items",
}

// setupRowLevelSecurity enables RLS on every tenant-scoped table and installs
// a policy comparing the row's restaurant_id to the session marker set by the
// tenant session manager. An empty or unset marker makes all rows visible:
// that is the explicit cross-restaurant admin mode, not a fallback.
func setupRowLevelSecurity(db *gorm.DB) error {
	for _, table := range tenantScopedTables {
		stmts := []string{
			fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY", table),
			// FORCE applies the policy to the table owner too, so isolation
			// does not silently depend on which role the app connects as
			fmt.Sprintf("ALTER TABLE %s FORCE ROW LEVEL SECURITY", table),
			fmt.Sprintf("DROP POLICY IF EXISTS %s_restaurant_isolation ON %s", table, table),
			fmt.Sprintf(`CREATE POLICY %s_restaurant_isolation ON %s
				USING (
					current_setting('app.current_restaurant_id', true) IS NULL
					OR current_setting('app.current_restaurant_id', true) = ''
					OR restaurant_id = current_setting('app.current_restaurant_id', true)
				)`, table, table),
		}
		for _, stmt := range stmts {
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("table %s: %w", table, err)
			}
		}
	}
	return nil
}
