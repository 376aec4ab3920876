package container

import (
	"context"
	"testing"

	"github.com/amirphl/tv-slot-pool/app/services"
	"github.com/amirphl/tv-slot-pool/config"
	"github.com/amirphl/tv-slot-pool/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func memoryConfig() *config.ProductionConfig {
	cfg := config.FromEnv()
	cfg.Pool.Store = config.StoreMemory
	cfg.Pool.EmailDomain = "tv.test"
	cfg.Pool.RotationRate = 0
	cfg.Cache.Enabled = false
	cfg.Logging.Output = "stdout"
	cfg.JWT.SecretKey = "container-test-secret-at-least-32-chars"
	return cfg
}

func TestNewWithMemoryStore(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, memoryConfig())
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.DB)
	assert.Nil(t, c.Redis)

	report, err := c.Bootstrap.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AccountsCreated)

	slot, err := c.Allocator.AssignOne(ctx, 3, models.SlotSale{})
	require.NoError(t, err)
	assert.Equal(t, "1a8@tv.test", slot.Account.Email)

	token, err := c.Tokens.GenerateToken("ops", services.RoleOperator)
	require.NoError(t, err)
	claims, err := c.Tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
}

func TestNewRejectsUnknownStore(t *testing.T) {
	cfg := memoryConfig()
	cfg.Pool.Store = "sqlite"

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewRejectsMissingSecret(t *testing.T) {
	cfg := memoryConfig()
	cfg.JWT.SecretKey = ""

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, gormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, gormLogLevel("info"))
	assert.Equal(t, gormlogger.Warn, gormLogLevel("warn"))
	assert.Equal(t, gormlogger.Error, gormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, gormLogLevel(""))
}
