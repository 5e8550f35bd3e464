package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/oms-router/internal/application/analytics"
	"github.com/jhoicas/oms-router/internal/application/fulfillment"
	"github.com/jhoicas/oms-router/internal/application/inventory"
	"github.com/jhoicas/oms-router/internal/application/routing"
	scoring "github.com/jhoicas/oms-router/internal/domain/routing"
	infrakafka "github.com/jhoicas/oms-router/internal/infrastructure/kafka"
	infrapdf "github.com/jhoicas/oms-router/internal/infrastructure/pdf"
	infraredis "github.com/jhoicas/oms-router/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/oms-router/internal/interfaces/http"
	"github.com/jhoicas/oms-router/pkg/config"
	"github.com/jhoicas/oms-router/pkg/logger"
	"github.com/jhoicas/oms-router/pkg/telemetry"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.Storage.Driver).
		Msg("iniciando aplicación")

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("configuración de tracing")
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar almacenamiento")
	}
	defer store.close()

	var locker routing.OrderLocker = routing.NewLocalOrderLocker()
	if cfg.Redis.Address != "" {
		rdb, err := infraredis.NewClient(ctx, infraredis.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		locker = infraredis.NewOrderLocker(rdb, log.Component("redis"))
	}

	var publisher routing.DecisionPublisher = routing.NewLogPublisher(log.Component("decisions"))
	if len(cfg.Kafka.Brokers) > 0 {
		kp := infrakafka.NewDecisionPublisher(cfg.Kafka.Brokers, cfg.Kafka.DecisionsTopic)
		defer func() {
			if err := kp.Close(); err != nil {
				log.Error().Err(err).Msg("cerrar writer de Kafka")
			}
		}()
		publisher = kp
	}

	ledgerUC := inventory.NewLedgerUseCase(store.txRunner, store.movements, store.stock)
	capabilityCache := routing.NewCapabilityCache(
		store.locations, store.settings, cfg.Routing.Defaults(),
		routing.CacheConfig{
			TTL:          cfg.Routing.CapabilityTTL,
			MaxStaleness: cfg.Routing.CapabilityMaxStaleness,
		},
		log.Component("capabilities"),
	)
	router := routing.NewRouter(
		store.orders,
		capabilityCache,
		routing.NewCandidateFilter(store.stock),
		scoring.NewEngine(),
		routing.NewDecisionRecorder(store.txRunner, ledgerUC),
		locker,
		publisher,
		routing.Config{MaxAttempts: cfg.Routing.MaxAttempts, LockTTL: cfg.Routing.OrderLockTTL},
		log.Component("router"),
	)
	locationUC := routing.NewLocationUseCase(store.locations, store.settings, capabilityCache)
	orderUC := fulfillment.NewOrderUseCase(
		store.txRunner, store.orders, store.locations, ledgerUC,
		infrapdf.NewPickingSlipGenerator(), log.Component("orders"),
	)
	analyticsUC := analytics.NewRoutingAnalyticsUseCase(store.orders, store.locations)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := store.ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "storage": cfg.Storage.Driver})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		OrderUC:     orderUC,
		Routing:     router,
		Ledger:      ledgerUC,
		LocationUC:  locationUC,
		AnalyticsUC: analyticsUC,
		JWTSecret:   cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado de tracing")
	}

	log.Info().Msg("aplicación detenida")
}
