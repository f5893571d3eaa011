package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Louaq/Awesome-poetize-open/internal/config"
	"github.com/Louaq/Awesome-poetize-open/internal/connection"
	"github.com/Louaq/Awesome-poetize-open/internal/handler"
	"github.com/Louaq/Awesome-poetize-open/internal/health"
	"github.com/Louaq/Awesome-poetize-open/internal/httpapi"
	imNats "github.com/Louaq/Awesome-poetize-open/internal/nats"
	"github.com/Louaq/Awesome-poetize-open/internal/repository"
	"github.com/Louaq/Awesome-poetize-open/internal/server"
	"github.com/Louaq/Awesome-poetize-open/internal/service"
	"github.com/Louaq/Awesome-poetize-open/internal/workerpool"
	"github.com/Louaq/Awesome-poetize-open/pkg/jwt"
	"github.com/Louaq/Awesome-poetize-open/pkg/snowflake"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.App.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	db, err := pgxpool.New(ctx, buildDatabaseDSN(cfg.Database))
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		logger.Error("Failed to ping PostgreSQL", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host, "db", cfg.Database.Name)

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to ping Redis", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to Redis", "host", cfg.Redis.Host)

	// NATS 可选，单节点部署不需要
	var natsClient *imNats.Client
	if cfg.NATS.Enabled {
		natsClient, err = imNats.NewClient(cfg.NATS, logger)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		logger.Info("Connected to NATS", "url", cfg.NATS.URL)
	}

	// 仓库层
	epochDefault := cfg.IM.EpochDefaultTime()
	lastReadRepo := repository.NewLastReadRepository(db)
	messageRepo := repository.NewMessageRepository(db, epochDefault)
	friendRepo := repository.NewFriendRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	userRepo := repository.NewUserRepository(db)

	// 连接管理与分发
	connMgr := connection.NewManager()
	pool := workerpool.New(cfg.IM.FanoutWorkers, cfg.IM.FanoutQueueSize, logger)
	defer pool.Shutdown()

	var relay service.Relay
	if natsClient != nil {
		natsRelay, err := imNats.NewRelay(natsClient, cfg.Server.NodeID, connMgr, logger)
		if err != nil {
			logger.Error("Failed to set up NATS relay", "error", err)
			os.Exit(1)
		}
		relay = natsRelay
	}

	// 服务层
	userCache := service.NewUserCacheService(redisClient, userRepo)
	broadcaster := service.NewBroadcastService(
		messageRepo, lastReadRepo, friendRepo, groupRepo, userCache,
		connMgr, relay, snowflake.NewNode(cfg.Server.NodeID), pool,
	)
	readState := service.NewReadStateService(lastReadRepo, messageRepo, friendRepo, groupRepo, epochDefault)

	jwtService := jwt.NewService(cfg.Auth.TokenSecret, cfg.Auth.TokenExpire)

	// WebTransport 接入服务器
	chatHandler := handler.NewChatHandler(broadcaster, logger)
	srv := server.New(cfg, jwtService, connMgr, chatHandler, broadcaster, logger)
	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error("WebTransport server failed", "error", err)
			os.Exit(1)
		}
	}()

	// HTTP API
	healthChecker := health.NewChecker(db, redisClient, natsClient, connMgr)
	readStateHandler := httpapi.NewReadStateHandler(readState)
	engine := httpapi.SetupRouter(cfg, jwtService, readStateHandler, healthChecker, logger)
	httpServer := httpapi.NewHTTPServer(cfg.HTTP.Addr, engine)
	go func() {
		logger.Info("HTTP server starting", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("IM server started",
		"app", cfg.App.Name,
		"addr", cfg.Server.Addr,
		"http_addr", cfg.HTTP.Addr,
		"node_id", cfg.Server.NodeID)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	srv.Shutdown()
	logger.Info("Server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildDatabaseDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?pool_max_conns=%d",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.MaxOpenConns)
}
