package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/storefront/ledgersync/internal/infrastructure/persistence/models"
	"github.com/storefront/ledgersync/internal/infrastructure/telemetry"
)

func TestDatabase_PingAndStats(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	// one ping from gorm.Open, one from Database.Ping
	mock.ExpectPing()
	mock.ExpectPing()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	db := &Database{DB: gormDB}

	require.NoError(t, db.Ping(context.Background()))

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, mockDB.Stats().MaxOpenConnections, stats.MaxOpenConnections)
	assert.GreaterOrEqual(t, stats.OpenConnections, stats.InUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	gormDB, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	mock.ExpectClose()
	db := &Database{DB: gormDB}

	require.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_WithLoggerAndTracing(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         true,
		SlowQueryThresh: time.Second,
		DBSystem:        "sqlite",
	}, zap.NewNop())

	db, err := Open(sqlite.Open(":memory:"), Options{
		Logger:        zap.New(core),
		LogLevel:      "debug",
		SlowThreshold: time.Second,
		Tracing:       tracing,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	require.NoError(t, db.AutoMigrate(&models.SyncRecordModel{}))
	var count int64
	require.NoError(t, db.Model(&models.SyncRecordModel{}).Count(&count).Error)

	assert.Equal(t, int64(0), count)
	assert.Contains(t, db.Plugins, "otelgorm")
	assert.NotEmpty(t, recorded.FilterMessage("Query").All())
}

func TestOpen_SilentWithoutLogger(t *testing.T) {
	db, err := Open(sqlite.Open(":memory:"), Options{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	assert.NotContains(t, db.Plugins, "otelgorm")
}
