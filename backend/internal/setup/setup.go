package setup

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/staffhub/staffhub/backend/internal/events"
	"github.com/staffhub/staffhub/backend/internal/handler"
	"github.com/staffhub/staffhub/backend/internal/service"
	"github.com/staffhub/staffhub/backend/internal/storage/memory"
	"github.com/staffhub/staffhub/backend/internal/storage/pg"
	"github.com/staffhub/staffhub/backend/internal/storage/redis"
	"github.com/staffhub/staffhub/backend/internal/storage/tree"
	"github.com/staffhub/staffhub/shared/config"
	"github.com/staffhub/staffhub/shared/crypto"
	"github.com/staffhub/staffhub/shared/jwt"
	"github.com/staffhub/staffhub/shared/logger"
	mw "github.com/staffhub/staffhub/shared/middleware"
	"github.com/staffhub/staffhub/shared/middleware/ratelimiter"
)

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Config            *config.Config
	Storage           tree.Store
	Publisher         events.Publisher
	Hasher            *crypto.IdentityHasher
	Jwt               jwt.JwtService
	Supervisor        service.SupervisorService
	Handler           *handler.Handler
	AuthMiddleware    *mw.Auth
	ModerationLimiter *ratelimiter.Limiter // nil when limiting is off
}

// SetupDependencies initializes all dependencies required for the application.
func SetupDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	storage, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	hasher, err := crypto.NewIdentityHasher(cfg.Private.IdentityPepper)
	if err != nil {
		storage.Close()
		return nil, err
	}
	if cfg.Private.IdentityPepper == "" {
		logger.Log.Warn("identity pepper is empty, record keys are plain hashes", "component", "setup")
	}

	publisher := newPublisher(cfg)
	jwtService := jwt.New(cfg.JwtKey(), cfg.JwtTTL())

	supervisor := service.NewSupervisor(storage, hasher, publisher)
	h := handler.New(supervisor, storage, cfg)
	authMw := mw.NewAuth(jwtService, supervisor, cfg.Public.Http.SecureCookies)

	var limiter *ratelimiter.Limiter
	if rate := cfg.Public.ModerationRateLimit; rate > 0 {
		// burst of one second worth of mutations, at least one
		limiter = ratelimiter.New(rate, max(rate, 1), time.Hour)
	}

	return &Dependencies{
		Config:            cfg,
		Storage:           storage,
		Publisher:         publisher,
		Hasher:            hasher,
		Jwt:               jwtService,
		Supervisor:        supervisor,
		Handler:           h,
		AuthMiddleware:    authMw,
		ModerationLimiter: limiter,
	}, nil
}

// NewStore opens the backend named by store.backend.
func NewStore(ctx context.Context, cfg *config.Config) (tree.Store, error) {
	switch cfg.Public.Store.Backend {
	case "memory":
		if cfg.Public.Store.SeedFile == "" {
			return memory.New(), nil
		}
		data, err := os.ReadFile(cfg.Public.Store.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file: %w", err)
		}
		logger.Log.Info("seeding memory store", "component", "setup", "file", cfg.Public.Store.SeedFile)
		return memory.NewFromJSON(data)
	case "postgres":
		return pg.New(ctx, cfg)
	case "redis":
		return redis.New(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Public.Store.Backend)
	}
}

func newPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.Public.Events.Brokers) == 0 {
		return events.NewLoggingPublisher(logger.Log)
	}
	publisher, err := events.NewKafkaPublisher(cfg.Public.Events.Brokers, cfg.Public.Events.Topics)
	if err != nil {
		logger.Log.Warn("kafka publisher disabled, using logging publisher", "component", "setup", "error", err)
		return events.NewLoggingPublisher(logger.Log)
	}
	return publisher
}

// Close releases everything SetupDependencies opened.
func (d *Dependencies) Close() {
	if d.ModerationLimiter != nil {
		d.ModerationLimiter.Stop()
	}
	if err := d.Publisher.Close(); err != nil {
		logger.Log.Error("failed to close publisher", "component", "setup", "error", err)
	}
	if err := d.Storage.Close(); err != nil {
		logger.Log.Error("failed to close store", "component", "setup", "error", err)
	}
}
