// Package container wires configuration, storage and flows into a runnable application
package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/tv-slot-pool/app/scheduler"
	"github.com/amirphl/tv-slot-pool/app/services"
	businessflow "github.com/amirphl/tv-slot-pool/business_flow"
	"github.com/amirphl/tv-slot-pool/config"
	"github.com/amirphl/tv-slot-pool/migrations"
	"github.com/amirphl/tv-slot-pool/repository"
	"github.com/amirphl/tv-slot-pool/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Container holds every long-lived dependency of the service
type Container struct {
	Config *config.ProductionConfig
	Logger *log.Logger

	DB    *gorm.DB
	Redis *redis.Client
	Store repository.Store

	Policy    businessflow.PoolPolicy
	Allocator businessflow.SlotAllocatorFlow
	Query     businessflow.SlotQueryFlow
	Tokens    services.TokenService
	Bootstrap *scheduler.PoolBootstrap

	stopFuncs []func()
}

// New builds the container. The caller must Close it.
func New(ctx context.Context, cfg *config.ProductionConfig) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: utils.NewLogger(cfg.Logging, "pool "),
	}

	store, err := c.initializeStore(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Store = store

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		c.Close()
		return nil, err
	}
	if rc != nil {
		c.Redis = rc
		c.stopFuncs = append(c.stopFuncs, startCacheHealthMonitor(ctx, rc, 30*time.Second))
	}

	tokens, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	c.Tokens = tokens

	locker := businessflow.NewGrowthLocker(c.Redis, cfg.Cache, cfg.Pool.GrowthLockTTL, cfg.Pool.GrowthLockWaitInterval)

	c.Policy = businessflow.NewPoolPolicy(cfg.Pool)
	c.Allocator = businessflow.NewSlotAllocatorFlow(c.Store, c.Policy, locker, c.Logger)
	c.Query = businessflow.NewSlotQueryFlow(c.Store, c.Policy, c.Allocator)
	c.Bootstrap = scheduler.NewPoolBootstrap(c.Allocator, c.Store.Slots(), cfg.Pool, utils.NewLogger(cfg.Logging, "bootstrap "))

	return c, nil
}

// Close stops background workers and releases connections
func (c *Container) Close() {
	for _, fn := range c.stopFuncs {
		fn()
	}
	c.stopFuncs = nil

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Printf("Error closing redis client: %v", err)
		}
		c.Redis = nil
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				c.Logger.Printf("Error closing database: %v", err)
			}
		}
		c.DB = nil
	}
}

func (c *Container) initializeStore(ctx context.Context) (repository.Store, error) {
	switch c.Config.Pool.Store {
	case config.StoreMemory:
		c.Logger.Println("Using in-memory pool store; data is lost on restart")
		return repository.NewMemoryStore(), nil
	case config.StorePostgres:
		db, err := initializeDatabase(c.Config.Database, c.Config.Logging)
		if err != nil {
			return nil, err
		}
		c.DB = db

		if c.Config.Database.RunMigrations {
			sqlDB, err := db.DB()
			if err != nil {
				return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
			}
			if err := migrations.Up(ctx, sqlDB); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			c.Logger.Println("Database migrations applied")
		}
		return repository.NewGormStore(db), nil
	default:
		return nil, fmt.Errorf("unknown pool store %q", c.Config.Pool.Store)
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logCfg config.LoggingConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if cfg.SlowQueryLog || logCfg.Level == "debug" {
		gormCfg.Logger = gormlogger.New(
			log.Default(),
			gormlogger.Config{
				SlowThreshold:             cfg.SlowQueryTime,
				LogLevel:                  gormLogLevel(logCfg.Level),
				IgnoreRecordNotFoundError: true,
			},
		)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// gormLogLevel maps LOG_LEVEL onto gorm's levels; debug logs every statement
func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

// initializeCache returns nil when redis is not configured
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings redis. The returned function stops it.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}
