// Package server assembles the FamLedger server: the PostgreSQL database
// and its migrations, the record store backend, the services, the gRPC
// Ledger service and the websocket change feed.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/server/config"
	"github.com/dmitrijs2005/famledger/internal/server/dynamo"
	gs "github.com/dmitrijs2005/famledger/internal/server/grpc"
	"github.com/dmitrijs2005/famledger/internal/server/hub"
	"github.com/dmitrijs2005/famledger/internal/server/repositories/records"
	"github.com/dmitrijs2005/famledger/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/famledger/internal/server/services"
)

var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}

	newRepoManager = func() repomanager.RepositoryManager {
		return repomanager.NewPostgresRepositoryManager()
	}
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	grpc   *gs.GRPCServer
	hub    *hub.Hub
}

func newRecordStore(ctx context.Context, cfg *config.Config, db *sql.DB, rm repomanager.RepositoryManager) (records.Store, error) {
	switch cfg.RecordsBackend {
	case config.BackendDynamoDB:
		client, err := dynamo.NewClient(ctx, cfg.DynamoRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, fmt.Errorf("dynamodb client: %w", err)
		}
		return records.NewDynamoStore(client, cfg.DynamoTable), nil
	default:
		return records.NewPostgresStore(db, rm.Records), nil
	}
}

func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	db, err := openDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepoManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	store, err := newRecordStore(ctx, cfg, db, rm)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info(ctx, "record store ready", "backend", cfg.RecordsBackend)

	households := services.NewHouseholdService(db, rm, logger)
	feed := hub.New([]byte(cfg.SecretKey), households, logger)

	grpcServer := gs.NewGRPCServer(cfg.EndpointAddrGRPC, logger, cfg.SecretKey,
		services.NewUserService(db, rm, cfg, logger),
		households,
		services.NewRecordService(store, households, feed, logger),
		services.NewReceiptService(households, cfg),
	)

	return &App{config: cfg, logger: logger, db: db, grpc: grpcServer, hub: feed}, nil
}

// Run serves until ctx is cancelled or a termination signal arrives. Both
// servers stop when either fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "starting app")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.grpc.Run(gctx) })
	g.Go(func() error { return app.hub.Run(gctx, app.config.EndpointAddrRealtime) })

	err := g.Wait()
	if cerr := app.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	app.logger.Info(ctx, "app stopped")
	return err
}
