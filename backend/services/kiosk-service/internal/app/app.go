package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	libredis "solarcharge/backend/libs/redis"
	"solarcharge/backend/services/kiosk-service/internal/config"
	"solarcharge/backend/services/kiosk-service/internal/duration"
	httpserver "solarcharge/backend/services/kiosk-service/internal/http"
	"solarcharge/backend/services/kiosk-service/internal/http/handlers"
	"solarcharge/backend/services/kiosk-service/internal/kiosk"
	"solarcharge/backend/services/kiosk-service/internal/payment"
	"solarcharge/backend/services/kiosk-service/internal/simulator"
	"solarcharge/backend/services/kiosk-service/internal/store"
	"solarcharge/backend/services/kiosk-service/internal/ws"
)

// App wires kiosk-service dependencies.
type App struct {
	cfg         *config.Config
	server      *httpserver.Server
	handler     http.Handler
	store       store.Store
	redisClient *redis.Client
	simulator   *simulator.Simulator
	logger      *zap.Logger
}

// OpenStore connects the configured session store backend. The returned client is
// nil for the memory backend.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, *redis.Client, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		logger.Warn("using in-memory session store; state is not shared with the charging controller")
		return store.NewMemoryStore(), nil, nil
	case config.StoreRedis:
		client, err := libredis.NewRedisClient(ctx, libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		st := store.NewRedisStore(client, store.RedisOptions{
			Key:          cfg.Store.Key,
			PollInterval: cfg.Store.PollInterval,
		}, logger.Named("store"))
		return st, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	st, client, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a, err := newWithStore(cfg, st, logger)
	if err != nil {
		if client != nil {
			client.Close()
		}
		return nil, err
	}
	a.redisClient = client
	return a, nil
}

func newWithStore(cfg *config.Config, st store.Store, logger *zap.Logger) (*App, error) {
	calc := duration.NewCalculator(duration.Limits{
		MaxHours:   cfg.Tariff.MaxHours,
		MaxMinutes: cfg.Tariff.MaxMinutes,
		MaxSeconds: cfg.Tariff.MaxSeconds,
	}, cfg.Tariff.RatePerHour)

	payments, err := payment.NewUPIGenerator(payment.UPIConfig{
		PayeeVPA:  cfg.Payment.PayeeVPA,
		PayeeName: cfg.Payment.PayeeName,
		Note:      cfg.Payment.Note,
		QRSize:    cfg.Payment.QRSize,
	})
	if err != nil {
		return nil, err
	}

	pages := kiosk.NewPages(st, calc, payments, logger.Named("kiosk"))
	manager := ws.NewManager()
	wsServer := ws.NewServer(manager, pages, cfg.HTTP.WSWriteTimeout, cfg.HTTP.WSPingInterval, logger.Named("ws"))
	sessionHandler := handlers.NewSessionHandler(st, pages, manager, logger)

	routes := httpserver.Routes{
		Health: handlers.NewHealthHandler(func(ctx context.Context) error {
			_, err := st.Get(ctx)
			return err
		}),
		WS:           wsServer.HandleWS,
		Session:      sessionHandler.HandleGet,
		SessionReset: sessionHandler.HandleReset,
		Clients:      sessionHandler.HandleClients,
	}

	if cfg.HTTP.WebDir != "" {
		routes.Web = http.FileServer(http.Dir(cfg.HTTP.WebDir))
		logger.Info("serving kiosk page", zap.String("dir", cfg.HTTP.WebDir))
	}

	router := httpserver.NewRouter(routes)
	a := &App{
		cfg:     cfg,
		server:  httpserver.NewServer(cfg.HTTPAddress(), router, logger),
		handler: router,
		store:   st,
		logger:  logger,
	}
	if cfg.Simulator.Enabled {
		a.simulator = a.newSimulator()
	}
	return a, nil
}

func (a *App) newSimulator() *simulator.Simulator {
	logger := a.logger.Named("simulator")
	return simulator.New(a.store, logger, simulator.Options{
		OnRelay: func(on bool) { logger.Info("relay switched", zap.Bool("on", on)) },
	})
}

// Handler returns the HTTP routes.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Store returns the session store the app was built with.
func (a *App) Store() store.Store {
	return a.store
}

// Run starts the HTTP server and, when enabled, the controller simulator.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Store.ResetOnStart {
		if err := a.store.Reset(ctx); err != nil {
			return fmt.Errorf("reset session record: %w", err)
		}
		a.logger.Info("session record reset on start")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.server.Run(ctx) })
	if a.simulator != nil {
		g.Go(func() error { return a.simulator.Run(ctx) })
	}
	return g.Wait()
}

// RunSimulator runs only the controller simulator against the store.
func (a *App) RunSimulator(ctx context.Context) error {
	sim := a.simulator
	if sim == nil {
		sim = a.newSimulator()
	}
	return sim.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
