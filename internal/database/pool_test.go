package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/shalynjjj/prompt2CAD/config"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := config.DatabaseConfig{Driver: "sqlite", Name: filepath.Join(t.TempDir(), "test.db")}
	db, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)
	return db
}

func TestDialector(t *testing.T) {
	tests := []struct {
		driver string
		name   string
		ok     bool
	}{
		{"sqlite", "sqlite", true},
		{"postgres", "postgres", true},
		{"mysql", "mysql", true},
		{"oracle", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := Dialector(config.DatabaseConfig{Driver: tt.driver, Name: "x"})
			if !tt.ok {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unsupported database driver")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, d.Name())
		})
	}
}

func TestPoolConfigFrom(t *testing.T) {
	pc := PoolConfigFrom(config.DatabaseConfig{Driver: "postgres", MaxOpenConns: 20, MaxIdleConns: 4, ConnMaxLifetime: time.Minute})
	assert.Equal(t, 20, pc.MaxOpenConns)
	assert.Equal(t, 4, pc.MaxIdleConns)
	assert.Equal(t, time.Minute, pc.ConnMaxLifetime)

	lite := PoolConfigFrom(config.DatabaseConfig{Driver: "sqlite", MaxOpenConns: 20})
	assert.Equal(t, 1, lite.MaxOpenConns)
	assert.Equal(t, 1, lite.MaxIdleConns)
	require.NoError(t, lite.Validate())
}

func TestPoolConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PoolConfig)
		wantErr string
	}{
		{"default", func(*PoolConfig) {}, ""},
		{"zero open", func(c *PoolConfig) { c.MaxOpenConns = 0 }, "max_open_conns"},
		{"zero idle", func(c *PoolConfig) { c.MaxIdleConns = 0 }, "max_idle_conns must be positive"},
		{"idle exceeds open", func(c *PoolConfig) { c.MaxIdleConns = 50 }, "exceeds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultPoolConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewPoolManager_NilDB(t *testing.T) {
	_, err := NewPoolManager(nil, DefaultPoolConfig(), nil)
	require.Error(t, err)
}

func TestPoolManager_SQLiteLifecycle(t *testing.T) {
	db := openSQLite(t)
	cfg := PoolConfigFrom(config.DatabaseConfig{Driver: "sqlite"})
	cfg.HealthCheckInterval = 5 * time.Millisecond

	pm, err := NewPoolManager(db, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, db, pm.DB())

	require.NoError(t, pm.Ping(context.Background()))
	stats := pm.GetStats()
	assert.Equal(t, 1, stats.MaxOpenConnections)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, pm.Close())
	require.NoError(t, pm.Close(), "second close is a no-op")

	err = pm.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestPoolManager_PingFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	cfg := DefaultPoolConfig()
	cfg.HealthCheckInterval = 0
	pm, err := NewPoolManager(db, cfg, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	err = pm.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	mock.ExpectClose()
	require.NoError(t, pm.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_SQLiteUsable(t *testing.T) {
	db := openSQLite(t)
	type row struct {
		ID   uint
		Name string
	}
	require.NoError(t, db.AutoMigrate(&row{}))
	require.NoError(t, db.Create(&row{Name: "keychain"}).Error)

	var got row
	require.NoError(t, db.First(&got).Error)
	assert.Equal(t, "keychain", got.Name)
}
