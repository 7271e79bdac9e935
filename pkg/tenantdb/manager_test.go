package tenantdb

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	setMarkerSQL   = "SELECT set_config('app.current_restaurant_id', $1, false)"
	setTxMarkerSQL = "SELECT set_config('app.current_restaurant_id', $1, true)"
	resetMarkerSQL = "SELECT set_config('app.current_restaurant_id', '', false)"
)

func newTestManager(t *testing.T) (*SessionManager, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	manager, err := NewSessionManager(gdb, time.Second, zap.NewNop())
	require.NoError(t, err)
	return manager, mock
}

func TestWithTenantSetsRunsAndResets(t *testing.T) {
	manager, mock := newTestManager(t)

	// Expectations are ordered: marker set, work, marker reset
	mock.ExpectExec(regexp.QuoteMeta(setMarkerSQL)).
		WithArgs("rest-a").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(resetMarkerSQL)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := manager.WithTenant(context.Background(), "rest-a", func(conn *sql.Conn) error {
		_, err := conn.ExecContext(context.Background(), "INSERT INTO orders (id) VALUES (1)")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTenantResetsOnWorkError(t *testing.T) {
	manager, mock := newTestManager(t)

	mock.ExpectExec(regexp.QuoteMeta(setMarkerSQL)).
		WithArgs("rest-a").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(resetMarkerSQL)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	workErr := errors.New("query blew up")
	err := manager.WithTenant(context.Background(), "rest-a", func(conn *sql.Conn) error {
		return workErr
	})
	assert.ErrorIs(t, err, workErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTenantResetsOnPanic(t *testing.T) {
	manager, mock := newTestManager(t)

	mock.ExpectExec(regexp.QuoteMeta(setMarkerSQL)).
		WithArgs("rest-a").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(resetMarkerSQL)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Panics(t, func() {
		_ = manager.WithTenant(context.Background(), "rest-a", func(conn *sql.Conn) error {
			panic("handler bug")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTenantAbortsWhenMarkerSetFails(t *testing.T) {
	manager, mock := newTestManager(t)

	mock.ExpectExec(regexp.QuoteMeta(setMarkerSQL)).
		WithArgs("rest-a").
		WillReturnError(errors.New("permission denied"))

	called := false
	err := manager.WithTenant(context.Background(), "rest-a", func(conn *sql.Conn) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called, "work must not run with an unknown tenant scope")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTenantSwallowsResetFailure(t *testing.T) {
	manager, mock := newTestManager(t)

	mock.ExpectExec(regexp.QuoteMeta(setMarkerSQL)).
		WithArgs("rest-a").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(resetMarkerSQL)).
		WillReturnError(errors.New("connection wedged"))

	// A failed cleanup is logged and the connection discarded, but the unit
	// of work itself already succeeded.
	err := manager.WithTenant(context.Background(), "rest-a", func(conn *sql.Conn) error {
		return nil
	})
	assert.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTenantRequiresRestaurantID(t *testing.T) {
	manager, mock := newTestManager(t)

	err := manager.WithTenant(context.Background(), "", func(conn *sql.Conn) error {
		t.Fatal("work must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrRestaurantRequired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTenantTransactionCommits(t *testing.T) {
	manager, mock := newTestManager(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(setTxMarkerSQL)).
		WithArgs("rest-a").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := manager.WithTenantTransaction(context.Background(), "rest-a", func(tx *gorm.DB) error {
		return tx.Exec("UPDATE products SET quantity = quantity - 1").Error
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTenantTransactionRollsBackOnError(t *testing.T) {
	manager, mock := newTestManager(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(setTxMarkerSQL)).
		WithArgs("rest-a").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	workErr := errors.New("constraint violation")
	err := manager.WithTenantTransaction(context.Background(), "rest-a", func(tx *gorm.DB) error {
		return workErr
	})
	assert.ErrorIs(t, err, workErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTenantTransactionRollsBackWhenMarkerSetFails(t *testing.T) {
	manager, mock := newTestManager(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(setTxMarkerSQL)).
		WithArgs("rest-a").
		WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	called := false
	err := manager.WithTenantTransaction(context.Background(), "rest-a", func(tx *gorm.DB) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithoutTenantClearsMarkerFirst(t *testing.T) {
	manager, mock := newTestManager(t)

	mock.ExpectExec(regexp.QuoteMeta(resetMarkerSQL)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE email =")).
		WithArgs("owner@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	var id uint
	err := manager.WithoutTenant(context.Background(), func(conn *sql.Conn) error {
		return conn.QueryRowContext(context.Background(),
			"SELECT id FROM users WHERE email = $1", "owner@example.com").Scan(&id)
	})
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolNotInitialized(t *testing.T) {
	_, err := NewSessionManager(nil, time.Second, zap.NewNop())
	assert.ErrorIs(t, err, ErrPoolNotInitialized)

	var manager *SessionManager
	assert.ErrorIs(t, manager.WithTenant(context.Background(), "rest-a", nil), ErrPoolNotInitialized)
	assert.ErrorIs(t, manager.WithoutTenant(context.Background(), nil), ErrPoolNotInitialized)
	assert.ErrorIs(t, manager.WithTenantTransaction(context.Background(), "rest-a", nil), ErrPoolNotInitialized)
}
