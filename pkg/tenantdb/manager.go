package tenantdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/zhanikpanik/restaurant-checklist-sub001/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// markerSetting is the session variable the row-level-security policies read.
// Every tenant-scoped table carries a policy comparing its restaurant_id
// column to current_setting('app.current_restaurant_id', true).
const markerSetting = "app.current_restaurant_id"

// resetTimeout bounds the marker cleanup statement so a wedged connection
// cannot stall request completion.
const resetTimeout = 5 * time.Second

var (
	// ErrPoolNotInitialized is returned when the manager has no backing pool.
	// Callers must fail loudly instead of falling back to an unscoped query.
	ErrPoolNotInitialized = errors.New("tenantdb: connection pool not initialized")

	// ErrRestaurantRequired is returned for scoped calls without a restaurant ID
	ErrRestaurantRequired = errors.New("tenantdb: restaurant id is required")
)

// SessionManager hands out database sessions scoped to exactly one restaurant.
//
// Scoped work runs on a single pooled connection whose lifecycle is
// acquire → set marker → run work → reset marker → release, with the reset
// guaranteed on every exit path. Concurrent calls each check out their own
// connection; marker state is never shared between two units of work.
type SessionManager struct {
	db             *sql.DB
	gdb            *gorm.DB
	log            *zap.Logger
	acquireTimeout time.Duration
}

// NewSessionManager creates a manager over the gorm-managed connection pool
func NewSessionManager(gdb *gorm.DB, acquireTimeout time.Duration, log *zap.Logger) (*SessionManager, error) {
	if gdb == nil {
		return nil, ErrPoolNotInitialized
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("tenantdb: obtain sql.DB from gorm: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionManager{
		db:             sqlDB,
		gdb:            gdb,
		log:            log,
		acquireTimeout: acquireTimeout,
	}, nil
}

// WithTenant runs fn on a connection whose session marker is set to the given
// restaurant, in autocommit mode. The marker is reset before the connection
// goes back to the pool even when fn fails or panics. If the reset itself
// fails the connection is discarded rather than pooled: a connection that
// cannot be proven clean must never be handed to the next borrower.
func (m *SessionManager) WithTenant(ctx context.Context, restaurantID string, fn func(conn *sql.Conn) error) error {
	if m == nil || m.db == nil {
		return ErrPoolNotInitialized
	}
	if restaurantID == "" {
		return ErrRestaurantRequired
	}

	conn, err := m.acquire(ctx)
	if err != nil {
		return err
	}

	// The restaurant ID is a bound parameter, never interpolated into the
	// statement text.
	if _, err := conn.ExecContext(ctx,
		"SELECT set_config('"+markerSetting+"', $1, false)", restaurantID); err != nil {
		_ = conn.Close()
		return fmt.Errorf("tenantdb: set restaurant marker: %w", err)
	}
	prometheus.TenantSessionsCounter.WithLabelValues("session").Inc()

	defer func() {
		// Cleanup runs even when fn panicked or the request context is
		// already cancelled.
		resetCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resetTimeout)
		defer cancel()

		if _, resetErr := conn.ExecContext(resetCtx,
			"SELECT set_config('"+markerSetting+"', '', false)"); resetErr != nil {
			prometheus.MarkerResetFailureCounter.Inc()
			m.log.Error("failed to reset restaurant marker, discarding connection",
				zap.String("restaurant_id", restaurantID),
				zap.Error(resetErr))
			// Returning driver.ErrBadConn from Raw marks the connection
			// bad; the pool drops it instead of reusing it.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
		_ = conn.Close()
	}()

	return fn(conn)
}

// WithTenantTransaction runs fn inside an explicit transaction with the
// marker set as a transaction-local variable. Postgres clears it at commit or
// rollback, so there is no separate reset step. The transaction commits when
// fn returns nil and rolls back otherwise.
func (m *SessionManager) WithTenantTransaction(ctx context.Context, restaurantID string, fn func(tx *gorm.DB) error) error {
	if m == nil || m.gdb == nil {
		return ErrPoolNotInitialized
	}
	if restaurantID == "" {
		return ErrRestaurantRequired
	}

	prometheus.TenantSessionsCounter.WithLabelValues("transaction").Inc()
	return m.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"SELECT set_config('"+markerSetting+"', ?, true)", restaurantID).Error; err != nil {
			return fmt.Errorf("tenantdb: set restaurant marker: %w", err)
		}
		return fn(tx)
	})
}

// WithoutTenant runs fn on a connection with the marker explicitly cleared,
// for genuinely cross-restaurant work such as looking up a user before the
// restaurant is known. It bypasses the row-level-security net; queries run
// here must carry their own filters.
func (m *SessionManager) WithoutTenant(ctx context.Context, fn func(conn *sql.Conn) error) error {
	if m == nil || m.db == nil {
		return ErrPoolNotInitialized
	}

	conn, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx,
		"SELECT set_config('"+markerSetting+"', '', false)"); err != nil {
		return fmt.Errorf("tenantdb: clear restaurant marker: %w", err)
	}
	prometheus.TenantSessionsCounter.WithLabelValues("admin").Inc()

	return fn(conn)
}

// acquire checks a connection out of the pool, bounded by the configured
// acquisition timeout so an exhausted pool fails instead of hanging.
func (m *SessionManager) acquire(ctx context.Context) (*sql.Conn, error) {
	if m.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.acquireTimeout)
		defer cancel()
	}

	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("tenantdb: acquire connection: %w", err)
	}
	return conn, nil
}
