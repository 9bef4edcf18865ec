package app

import (
	"fmt"

	"github.com/go-redis/redis"
	"gorm.io/gorm"

	"github.com/xpanvictor/quil-bridge/internal/auth"
	"github.com/xpanvictor/quil-bridge/internal/config"
	"github.com/xpanvictor/quil-bridge/internal/database"
	"github.com/xpanvictor/quil-bridge/internal/repository/memory"
	"github.com/xpanvictor/quil-bridge/internal/server"
	"github.com/xpanvictor/quil-bridge/internal/upstream"
	"github.com/xpanvictor/quil-bridge/pkg/Logger"
	"github.com/xpanvictor/quil-bridge/pkg/io/registry"
	memoryregistry "github.com/xpanvictor/quil-bridge/pkg/io/registry/memoryRegistry"
)

// App represents the application with all its dependencies
type App struct {
	Config     *config.Settings
	Logger     *Logger.Logger
	DB         *gorm.DB
	RC         *redis.Client
	Registry   registry.SessionRegistry
	Memory     memory.Store
	DeviceAuth *auth.DeviceAuth
	Backends   upstream.Factory
	ServerDeps server.Dependencies
}

// NewApp creates a new application instance with all dependencies properly wired
func NewApp(cfg *config.Settings, logger *Logger.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.setupDependencies(); err != nil {
		app.Shutdown()
		return nil, err
	}

	return app, nil
}

func (a *App) setupDependencies() error {
	// 1. Shared session table
	a.Registry = memoryregistry.New()

	// 2. Conversation memory
	if err := a.setupMemory(); err != nil {
		return err
	}

	// 3. Upstream backends, one per session
	a.Backends = NewBackendFactory(a.Config, a.Logger)

	// 4. Device tokens
	a.DeviceAuth = auth.NewDeviceAuth(a.Config.Auth.JWTSecret)
	if a.DeviceAuth == nil {
		a.Logger.Warn("JWT secret not configured, device connections are not authenticated")
	}

	a.ServerDeps = server.NewServerDependencies(
		a.Registry,
		a.Backends,
		a.Memory,
		a.DeviceAuth,
		a.Logger,
		a.Config,
	)
	return nil
}

func (a *App) setupMemory() error {
	backend := a.Config.Memory.Backend

	if backend == "redis" || backend == "cached" {
		rc, err := database.NewRedis(a.Config.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.RC = rc
	}
	if backend == "mysql" || backend == "cached" {
		db, err := database.InitDB(a.Config.DB, a.Config.Debug)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if err := database.MigrateDB(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		a.DB = db
	}

	switch backend {
	case "redis":
		a.Memory = memory.NewRedis(a.RC, a.Config.Memory.TTL)
	case "mysql":
		a.Memory = memory.NewGorm(a.DB)
	case "cached":
		a.Memory = memory.NewCached(
			memory.NewGorm(a.DB),
			memory.NewRedis(a.RC, a.Config.Memory.TTL),
			a.Logger.Named("memory"),
		)
	default:
		a.Memory = memory.NewNoop()
	}
	a.Logger.Infof("memory backend: %s", backend)
	return nil
}

// GetServerDependencies returns the server dependencies
func (a *App) GetServerDependencies() server.Dependencies {
	return a.ServerDeps
}

// Shutdown closes every session and releases storage connections.
func (a *App) Shutdown() {
	if a.Registry != nil {
		if err := a.Registry.CloseAll(); err != nil {
			a.Logger.Warnf("closing sessions: %v", err)
		}
	}
	if a.RC != nil {
		_ = a.RC.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
