package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/fekuna/omnipos-retail-service/config"
	"github.com/fekuna/omnipos-retail-service/internal/events"
	invListenerPkg "github.com/fekuna/omnipos-retail-service/internal/inventory/listener"
	"github.com/fekuna/omnipos-retail-service/pkg/broker"
	"github.com/fekuna/omnipos-retail-service/pkg/cache"
	"github.com/fekuna/omnipos-retail-service/pkg/database"
	"github.com/fekuna/omnipos-retail-service/pkg/logger"
	"github.com/fekuna/omnipos-retail-service/pkg/search"
)

const publishTimeout = 5 * time.Second

func main() {
	root := &cobra.Command{
		Use:           "retail",
		Short:         "OmniPOS retail inventory, sales and reconciliation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the logger.
func bootstrap() (*config.Config, logger.ZapLogger, error) {
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
	}
	return cfg, logger.NewZapLogger(logConfig), nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, appLogger, err := bootstrap()
			if err != nil {
				return err
			}
			defer appLogger.Sync()

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			appLogger.Info("Schema applied", zap.String("driver", cfg.Database.Driver))
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var autoMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, appLogger, err := bootstrap()
			if err != nil {
				return err
			}
			defer appLogger.Sync()
			return serve(cfg, appLogger, autoMigrate)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "migrate", true, "apply the schema before serving")
	return cmd
}

func serve(cfg *config.Config, appLogger logger.ZapLogger, autoMigrate bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Connect to Database
	db, err := openDatabase(cfg)
	if err != nil {
		appLogger.Error("Could not connect to database", zap.Error(err))
		return err
	}
	defer db.Close()
	appLogger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	if autoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	// 2. Initialize Redis
	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			appLogger.Error("Could not connect to Redis", zap.Error(err))
			return err
		}
		defer redisClient.Close()
		appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// 3. Initialize Kafka
	publisher := events.NewNop()
	var kafkaConsumer *broker.KafkaConsumer
	if cfg.Kafka.Enabled {
		brokerCfg := &broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}
		kafkaProducer := broker.NewProducer(brokerCfg)
		defer kafkaProducer.Close()
		kafkaPublisher := events.NewKafkaPublisher(kafkaProducer, publishTimeout, appLogger)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher

		kafkaConsumer = broker.NewConsumer(brokerCfg)
		defer kafkaConsumer.Close()
		appLogger.Info("Connected to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// 4. Initialize Elasticsearch
	var esClient *search.Client
	if cfg.Elastic.Enabled {
		esClient, err = search.NewClient(&search.Config{
			Addresses: cfg.Elastic.Addresses,
			Username:  cfg.Elastic.Username,
			Password:  cfg.Elastic.Password,
		})
		if err != nil {
			appLogger.Warn("Could not connect to Elasticsearch, search falls back to SQL", zap.Error(err))
			esClient = nil
		} else {
			appLogger.Info("Connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
		}
	}

	// 5. Initialize UseCases and Handlers
	svc, err := newServices(cfg, db, redisClient, esClient, publisher, appLogger)
	if err != nil {
		return err
	}

	// 6. Start gRPC Server
	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	lis, err := net.Listen("tcp", port)
	if err != nil {
		return err
	}
	grpcServer, healthServer := newGRPCServer(svc.handlers)

	g, gctx := errgroup.WithContext(ctx)
	if kafkaConsumer != nil {
		invListener := invListenerPkg.NewInventoryListener(kafkaConsumer, svc.inventory, appLogger)
		g.Go(func() error {
			invListener.Start(gctx)
			return nil
		})
	}
	g.Go(func() error {
		appLogger.Info("Starting gRPC server", zap.String("port", port))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server...")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		appLogger.Info("Server stopped")
		return nil
	})

	return g.Wait()
}
