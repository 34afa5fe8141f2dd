package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"giftlist/internal/config"
	"giftlist/internal/db"
	"giftlist/internal/family"
	"giftlist/internal/gate"
	"giftlist/internal/handlers"
	"giftlist/internal/handlers/api"
	"giftlist/internal/jobs"
	"giftlist/internal/live"
	"giftlist/internal/logger"
	"giftlist/internal/metrics"
	"giftlist/internal/middleware"
	"giftlist/internal/server"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
	log.Info("Server exited")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	if cfg.OIDCIssuer == "" {
		return errors.New("OIDC_ISSUER is required, all users must be authenticated")
	}

	// Initialize database
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}
	log.Info("Migrations completed successfully")

	if err := seedFamily(ctx, cfg, database, log); err != nil {
		return err
	}

	metrics.Init(database, logger.Component(log, "metrics"))

	// Live updates: database notifications fan out through the hub
	hub := live.NewHub()
	listener := live.NewListener(database.Pool, hub, db.ChangeChannel, logger.Component(log, "listener"))
	listener.OnError = func(error) {
		metrics.SubscriptionErrors.WithLabelValues("listener").Inc()
	}

	registry := family.NewRegistry(database, hub, family.Options{
		Workers: cfg.AnnotationWorkers,
		Log:     logger.Component(log, "family"),
	})
	signInGate := gate.New(database, registry, logger.Component(log, "gate"))

	authHandler, err := handlers.NewAuthHandler(ctx, cfg, signInGate, logger.Component(log, "auth"))
	if err != nil {
		return err
	}

	srv := server.New(cfg, log)
	srv.RegisterRoutes(server.Handlers{
		Auth:       authHandler,
		Middleware: middleware.NewAuthMiddleware(database),
		App:        handlers.NewAppHandler(registry, srv.Views, cfg, logger.Component(log, "app")),
		Users:      api.NewUserHandler(database),
		Items:      api.NewItemHandler(database, cfg.AnnotationWorkers, logger.Component(log, "api")),
		Probe:      handlers.NewProbeHandler(database),
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		listener.Run(gctx)
		return nil
	})

	if cfg.LinkCheckInterval > 0 {
		checker := jobs.NewLinkChecker(database, cfg.LinkCheckInterval, cfg.LinkCheckMaxAge, logger.Component(log, "link-checker"))
		g.Go(func() error {
			checker.Start(gctx)
			return nil
		})
	}

	reaper := jobs.NewSessionReaper(registry, cfg.SessionIdleTimeout, time.Minute, logger.Component(log, "session-reaper"))
	g.Go(func() error {
		reaper.Start(gctx)
		return nil
	})

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		registry.CloseAll()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// seedFamily registers the members listed in the family file. In development
// an empty database gets a demo family instead.
func seedFamily(ctx context.Context, cfg *config.Config, database *db.DB, log *logrus.Logger) error {
	familyCfg, err := config.LoadFamilyConfig(cfg.FamilyFile)
	if err != nil {
		return err
	}

	if familyCfg != nil {
		members := make([]db.Member, len(familyCfg.Members))
		for i, m := range familyCfg.Members {
			members[i] = db.Member{Email: m.Email, DisplayName: m.DisplayName}
		}
		added, err := database.RegisterMembers(ctx, members)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"file": cfg.FamilyFile, "added": added}).Info("Family file loaded")
		return nil
	}

	if cfg.IsDev() {
		count, err := database.GetUserCount(ctx)
		if err != nil {
			return err
		}
		if count == 0 {
			log.Info("No family members registered, seeding demo family")
			return database.SeedDevFamily(ctx)
		}
	}
	return nil
}
