package main

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/fekuna/omnipos-retail-service/config"
	"github.com/fekuna/omnipos-retail-service/internal/auth"
	"github.com/fekuna/omnipos-retail-service/internal/events"
	"github.com/fekuna/omnipos-retail-service/internal/inventory"
	"github.com/fekuna/omnipos-retail-service/pkg/cache"
	"github.com/fekuna/omnipos-retail-service/pkg/database"
	"github.com/fekuna/omnipos-retail-service/pkg/logger"
	"github.com/fekuna/omnipos-retail-service/pkg/rpc"
	"github.com/fekuna/omnipos-retail-service/pkg/search"

	invH "github.com/fekuna/omnipos-retail-service/internal/inventory/handler"
	invRepoPkg "github.com/fekuna/omnipos-retail-service/internal/inventory/repository"
	invUCPkg "github.com/fekuna/omnipos-retail-service/internal/inventory/usecase"

	saleH "github.com/fekuna/omnipos-retail-service/internal/sale/handler"
	saleRepoPkg "github.com/fekuna/omnipos-retail-service/internal/sale/repository"
	saleUCPkg "github.com/fekuna/omnipos-retail-service/internal/sale/usecase"

	recH "github.com/fekuna/omnipos-retail-service/internal/reconciliation/handler"
	recUCPkg "github.com/fekuna/omnipos-retail-service/internal/reconciliation/usecase"

	staffH "github.com/fekuna/omnipos-retail-service/internal/staff/handler"
	staffRepoPkg "github.com/fekuna/omnipos-retail-service/internal/staff/repository"
	staffUCPkg "github.com/fekuna/omnipos-retail-service/internal/staff/usecase"
)

func openDatabase(cfg *config.Config) (*sqlx.DB, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		return database.NewSQLite(cfg.Database.SQLite.Path)
	case config.DriverPostgres:
		pg := cfg.Database.Postgres
		return database.NewPostgres(&database.Config{
			Host:            pg.Host,
			Port:            pg.Port,
			User:            pg.User,
			Password:        pg.Password,
			DBName:          pg.DBName,
			SSLMode:         pg.SSLMode,
			MaxOpenConns:    pg.MaxOpenConns,
			MaxIdleConns:    pg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(pg.ConnMaxLifetime) * time.Second,
			ConnMaxIdleTime: time.Duration(pg.ConnMaxIdleTime) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
}

// services holds the wired usecases and the handlers exposed over gRPC.
type services struct {
	inventory inventory.UseCase
	handlers  []rpc.Registrar
}

// newServices wires repositories, usecases and handlers. redis and es may be
// nil.
func newServices(cfg *config.Config, db *sqlx.DB, redis *cache.RedisClient, es *search.Client, publisher events.Publisher, log logger.ZapLogger) (*services, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// Repositories
	staffRepo := staffRepoPkg.NewPGRepository(db)
	invRepo := invRepoPkg.NewPGRepository(db)
	ledger := saleRepoPkg.NewPGLedger(db)

	// UseCases
	invUC := invUCPkg.NewInventoryUseCase(invRepo, redis, es, publisher, invUCPkg.Config{
		StoreTimeout: cfg.Sale.StoreTimeout,
		CacheTTL:     cfg.Cache.InventoryTTL,
		Index:        cfg.Elastic.Index,
	}, log)
	saleUC := saleUCPkg.NewSaleUseCase(invRepo, ledger, invUC, redis, publisher, saleUCPkg.Config{
		StoreTimeout:   cfg.Sale.StoreTimeout,
		CommitTimeout:  cfg.Sale.CommitTimeout,
		IdempotencyTTL: cfg.Sale.IdempotencyTTL,
		Location:       loc,
	}, log)
	staffUC := staffUCPkg.NewStaffUseCase(staffRepo, cfg.Sale.StoreTimeout, log,
		staffUCPkg.WithRemovalHook(saleUC.DiscardCart),
	)
	recUC := recUCPkg.NewReconciliationUseCase(ledger, staffRepo, publisher, recUCPkg.Config{
		StoreTimeout: cfg.Sale.StoreTimeout,
		Location:     loc,
	}, log)

	// Handlers
	var sessions auth.Resolver = staffUC
	return &services{
		inventory: invUC,
		handlers: []rpc.Registrar{
			staffH.NewStaffHandler(staffUC, log),
			invH.NewInventoryHandler(invUC, sessions, log),
			saleH.NewSaleHandler(saleUC, sessions, log),
			recH.NewReconciliationHandler(recUC, sessions, log),
		},
	}, nil
}

func newGRPCServer(handlers []rpc.Registrar) (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(auth.UnaryInterceptor()),
	)
	rpc.Register(grpcServer, handlers...)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	for _, h := range handlers {
		healthServer.SetServingStatus(h.ServiceDesc().ServiceName, healthpb.HealthCheckResponse_SERVING)
	}
	return grpcServer, healthServer
}
