package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iconnor/ocpp-charge-profile/backend/libs/db"
	"github.com/iconnor/ocpp-charge-profile/backend/libs/redis"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/clients"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/config"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/handlers"
	httpserver "github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/http"
	httphandlers "github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/http/handlers"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/http/middleware"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/protocol"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/schema"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/redisstore"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/repository"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/service"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/smartcharging"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ws"
)

// App wires all dependencies for the OCPP server.
type App struct {
	wsServer  *httpserver.Server
	opsServer *httpserver.Server
	manager   *ws.Manager
	db        *sql.DB
	redis     *goredis.Client
	logger    *zap.Logger
}

// New builds the application graph. Sessions are bound to ctx.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	var frameLog ocpp.FrameLog
	var frames httphandlers.FrameReader
	if cfg.Database.DSN != "" {
		sqlDB, err := db.NewPostgresDB(ctx, cfg.Database.DSN, db.Options{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.db = sqlDB
		logRepo := repository.NewOCPPLogRepository(sqlDB)
		if err := logRepo.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("prepare frame log: %w", err)
		}
		frameLog = logRepo
		frames = logRepo
	} else {
		logger.Info("frame audit log disabled")
	}

	var store smartcharging.ProfileStore
	var profiles httphandlers.ProfileReader
	if cfg.Redis.Addr != "" {
		client, err := redis.NewRedisClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		profileStore := redisstore.NewProfileStore(client, cfg.RedisTTL())
		store = profileStore
		profiles = profileStore
	} else {
		logger.Info("applied profile store disabled")
	}

	validator, err := schema.NewValidator()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	stationState := service.NewStationState()
	router := ocpp.NewRouter(validator, protocol.Version16, frameLog, logger)
	handlers.RegisterAll(router, stationState, logger)
	logger.Info("ocpp actions registered", zap.Strings("actions", router.Actions()))

	var controllers ws.ControllerFactory
	if cfg.SmartCharging.Enabled {
		reader := clients.NewSharedReader(clients.NewFroniusClient(cfg.SolarURL(), cfg.SolarTimeout(), logger), cfg.SolarCacheTTL())
		policy := smartcharging.Policy{MinimumLimit: cfg.MinimumLimit(), Unit: cfg.SolarUnit()}
		controllers = func(chargePointID string, caller smartcharging.Caller) *smartcharging.Controller {
			return smartcharging.NewController(chargePointID, reader, caller, store, policy, logger)
		}
	} else {
		logger.Info("smart charging disabled")
	}

	a.manager = ws.NewManager(cfg.PingInterval(), logger)
	wsHandler := ws.NewServer(ctx, ws.ServerConfig{
		Manager:     a.manager,
		Dispatcher:  router,
		Validator:   validator,
		FrameLog:    frameLog,
		Controllers: controllers,
		Auth:        ws.NewBasicAuth(cfg.Auth.ChargePoints),
		Options: ws.Options{
			Version:      protocol.Version16,
			WriteTimeout: cfg.WriteTimeout(),
			ReadTimeout:  cfg.ReadTimeout(),
			CallTimeout:  cfg.CallTimeout(),
			TickInterval: cfg.TickInterval(),
		},
	}, logger)
	a.wsServer = httpserver.NewServer("ocpp", cfg.HTTPAddress(), wsHandler, logger)

	if addr := cfg.OpsAddress(); addr != "" {
		var auth func(http.Handler) http.Handler
		if cfg.Ops.JWTSecret != "" {
			auth = middleware.AuthMiddleware(cfg.Ops.JWTSecret)
		} else {
			logger.Info("ops api disabled, no jwt secret configured")
		}
		opsRouter := httpserver.NewRouter(httpserver.RouterDeps{
			ChargePoints:  httphandlers.NewChargePointsHandlers(a.manager, stationState, profiles, frames, logger),
			HealthHandler: httphandlers.NewHealthHandler(),
		}, auth)
		a.opsServer = httpserver.NewServer("ops", addr, opsRouter, logger)
	}

	return a, nil
}

// Run starts the session manager and HTTP servers until ctx is done or one fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.manager.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return a.wsServer.Run(gctx)
	})
	if a.opsServer != nil {
		g.Go(func() error {
			return a.opsServer.Run(gctx)
		})
	}
	return g.Wait()
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
