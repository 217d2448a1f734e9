// main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lms-backend/cmd"
	"lms-backend/internal/data/repository"
	"lms-backend/internal/scheduler"
	"lms-backend/internal/wire"
	"lms-backend/pkg/database"
	"lms-backend/pkg/payment"
	"lms-backend/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Upper bound for one reconciliation sweep.
const reconcileTimeout = 5 * time.Minute

func main() {
	// Load config
	config, err := utils.LoadConfig(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.InitDB(ctx, config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	logger.Info("Database connected successfully")

	// Initialize all repositories and the payment provider client
	repos := repository.NewRepository(db, logger)
	gateway := payment.NewStripeGateway(config.Stripe, logger)

	// Wire all dependencies
	app := wire.Wiring(repos, gateway, config, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return cmd.APIServer(gctx, app.Router, config.App.Port, logger)
	})

	if config.Reconcile.Enabled {
		sched := scheduler.New(logger)
		if err := sched.AddReconciler(config.Reconcile.Schedule, app.Service.Reconcile, reconcileTimeout); err != nil {
			logger.Fatal("Failed to schedule reconciler", zap.Error(err))
		}
		g.Go(func() error {
			return sched.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Application stopped with error", zap.Error(err))
		return
	}
	logger.Info("Application stopped")
}
