package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/rainadr/service-fleet-commander/internal/bot"
	"github.com/rainadr/service-fleet-commander/internal/config"
	"github.com/rainadr/service-fleet-commander/internal/fleet"
	"github.com/rainadr/service-fleet-commander/internal/server/command/handler"
	"github.com/rainadr/service-fleet-commander/internal/store"
	authentication "github.com/rainadr/service-fleet-commander/pkg/auth"
	"github.com/rainadr/service-fleet-commander/pkg/database"
	"github.com/rainadr/service-fleet-commander/pkg/deps"
	"github.com/rainadr/service-fleet-commander/pkg/logger"
	"github.com/rainadr/service-fleet-commander/pkg/middleware"
	"github.com/rainadr/service-fleet-commander/pkg/pubsub"
	"github.com/rainadr/service-fleet-commander/pkg/retry"
)

func main() {
	log, err := logger.NewLoggerFromEnv("commander")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("starting commander service")

	cfg, err := config.LoadCommanderConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	log.Info("configuration loaded",
		logger.String("server_addr", cfg.ServerAddr),
		logger.String("database_path", cfg.DatabasePath),
	)

	auth := middleware.SetBasicAuth(&authentication.BasicAuthConfig{
		OperatorUsername: cfg.OperatorUsername,
		OperatorPassword: cfg.OperatorPassword,
		AdminUsername:    cfg.AdminUsername,
		AdminPassword:    cfg.AdminPassword,
	})
	mid := middleware.NewAuthMiddleware(auth)
	log.Info("authentication initialized")

	db, err := database.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	log.Info("database initialized", logger.String("path", cfg.DatabasePath))

	if err := database.RunMigrations(db); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}
	log.Info("database migrations applied successfully")

	botStore := store.NewGormStore(db, log)
	registry := fleet.NewRegistry()

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := bootRegistry(bootCtx, registry, botStore, log); err != nil {
		bootCancel()
		log.WithError(err).Fatal("failed to load bots from store")
	}
	bootCancel()
	log.Info("registry loaded", logger.Int("bots", registry.Count()))

	app := fiber.New(fiber.Config{
		AppName:               "Commander Service",
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.CanonicalLoggerMiddleware(log))

	d := deps.App{
		Fiber:      app,
		Logger:     log,
		Registry:   registry,
		Store:      botStore,
		Middleware: mid,
	}

	var eventSub pubsub.Subscriber
	if cfg.Redis != nil {
		redisCfg := pubsub.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}

		var redisPub pubsub.PubSub
		err := retry.Do(context.Background(), retry.Config{
			MaxRetries:     3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2,
			OnRetry: func(attempt int, err error) {
				log.WithError(err).Warn("retrying redis connection", logger.Int("attempt", attempt))
			},
		}, func(ctx context.Context) error {
			var err error
			redisPub, err = pubsub.NewRedisPubSub(redisCfg, log)
			return err
		})
		if err != nil {
			log.WithError(err).Error("failed to initialize redis pub/sub, continuing without event publication",
				logger.String("impact", "fleet_events_not_published"))
		} else {
			d.Pub = redisPub
			eventSub = redisPub
			log.Info("redis pub/sub initialized successfully",
				logger.String("host", cfg.Redis.Host),
				logger.Int("port", cfg.Redis.Port))
			defer redisPub.Close()
		}
	} else {
		log.Info("no redis configuration provided; skipping pub/sub initialization")
	}

	h := handler.NewHandler(d, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	gErr, gCtx := errgroup.WithContext(ctx)

	if eventSub != nil {
		gErr.Go(func() error {
			err := h.UseCase.WatchConfigUpdates(gCtx, eventSub)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("config update watcher stopped")
				return err
			}
			return nil
		})
	}

	gErr.Go(func() error {
		log.Info("commander service is running", logger.String("address", cfg.ServerAddr))
		if err := app.Listen(cfg.ServerAddr); err != nil {
			cancel()
			return err
		}
		return nil
	})

	gErr.Go(func() error {
		<-gCtx.Done()

		if err := app.Shutdown(); err != nil {
			log.WithError(err).Error("failed to shutdown fiber app")
			return err
		}

		for _, w := range registry.Snapshot() {
			w.Stop()
		}

		conn, err := db.DB()
		if err != nil {
			log.WithError(err).Error("failed to get database connection")
			return err
		}
		if err := conn.Close(); err != nil {
			log.WithError(err).Error("failed to close database")
			return err
		}

		return nil
	})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
		log.Info("listening for shutdown signals")
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
	}()

	if err := gErr.Wait(); err != nil {
		log.WithError(err).Fatal("commander service encountered an error")
	}

	log.Info("commander service stopped gracefully")
}

// bootRegistry rebuilds the in-memory fleet from persisted configs and
// starts every bot whose config enables it.
func bootRegistry(ctx context.Context, registry *fleet.Registry, botStore store.Store, log *logger.CanonicalLogger) error {
	configs, err := botStore.Load(ctx)
	if err != nil {
		return err
	}

	for name, cfg := range configs {
		b := bot.New(name, cfg, log)
		if err := registry.Add(b); err != nil {
			log.WithBot(name).WithError(err).Error("skipping bot that cannot be registered")
			continue
		}
		if cfg.Enabled {
			if ok, message := b.Start(); !ok {
				log.WithBot(name).Warn("bot did not start", logger.String("reason", message))
			}
		}
	}
	return nil
}
