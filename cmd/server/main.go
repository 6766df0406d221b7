package main

import (
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"route-dispatch-service/internal/adapters/cache"
	"route-dispatch-service/internal/adapters/repositories"
	"route-dispatch-service/internal/adapters/routing"
	"route-dispatch-service/internal/api"
	"route-dispatch-service/internal/config"
	"route-dispatch-service/internal/platform/db"
	"route-dispatch-service/internal/platform/logging"
	"route-dispatch-service/internal/ports"
	"route-dispatch-service/internal/services"
)

// main is the application composition root.
// It wires concrete adapters (Postgres, Redis, ORS, VROOM) behind ports and
// starts the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer database.Close()

	// Route cache is optional; without Redis every recompute hits the provider.
	var routeCache ports.RouteCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		routeCache = cache.NewRedisRouteCache(client)
		defer client.Close()
	}

	router, err := buildRouteProvider(cfg)
	if err != nil {
		logger.Fatal("build route provider", zap.Error(err))
	}

	var solver ports.SolveProvider
	if cfg.SolverBaseURL != "" {
		s, err := routing.NewVroomSolver(cfg.SolverBaseURL, cfg.ProviderTimeout)
		if err != nil {
			logger.Fatal("build solver", zap.Error(err))
		}
		solver = s
	}

	gateway := routing.NewGateway(router, solver, routeCache, routing.GatewayConfig{
		CacheTTL:    cfg.RouteCacheTTL,
		CallTimeout: cfg.ProviderTimeout,
	}, logger)

	engineCfg := services.DefaultConfig()
	engineCfg.Stats.FallbackSpeedKmh = cfg.FallbackSpeedKmh
	engineCfg.Optimize.Stats = engineCfg.Stats
	engineCfg.Dispatch.Stats = engineCfg.Stats
	engineCfg.Dispatch.WindowTolerance = cfg.WindowTolerance
	engineCfg.Dispatch.MaxRoundDuration = cfg.MaxRoundDuration
	engineCfg.Dispatch.MaxInsertionDetourMeters = cfg.MaxInsertionDetourMeters

	repo := repositories.NewPostgresRoundRepository(database)
	engine := services.NewEngine(gateway, repo, engineCfg, logger)
	handler := api.NewRouter(repo, engine, logger)

	// Timeouts are tuned for cold-cache route computation (external API latency).
	logger.Info("server listening", zap.String("addr", ":"+cfg.Port))
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	logger.Fatal("server stopped", zap.Error(srv.ListenAndServe()))
}

// buildRouteProvider selects openrouteservice when a key is configured and
// falls back to the offline great-circle provider otherwise.
func buildRouteProvider(cfg config.Config) (ports.RouteProvider, error) {
	if cfg.ORSAPIKey != "" {
		return routing.NewORSProvider(cfg.ORSAPIKey, cfg.ORSBaseURL, cfg.ProviderTimeout)
	}
	return routing.NewLocalProvider(cfg.FallbackSpeedKmh), nil
}
