package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"oddjobsgo/internal/bidrank"
	"oddjobsgo/internal/config"
	"oddjobsgo/internal/database/db_client"
	"oddjobsgo/internal/http/http_server"
	"oddjobsgo/internal/redis/redis_client"
	"oddjobsgo/internal/services/post"
	"oddjobsgo/internal/syncnotify"
	"oddjobsgo/internal/synctop"
	"oddjobsgo/internal/ws"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client
	var postService post.IPostService

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis (push channel + notification stream)
	redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	Log.Debug("Redis client created successfully")

	// 4. Postgres db client
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	// 5. Post service (bid ranking + job lifecycle engine)
	postService = post.NewPostService(redisClient, pgDb)
	defaultSort := bidrank.SortMode(cfg.DefaultSortMode)

	// 6. Background: notification-stream tailer ➜ Postgres
	syncnotify.Run(ctx, redisClient, pgDb)

	// 7. Background: 10 s top-bid mirror for post cards
	synctop.Run(ctx, pgDb)

	// 8. WebSockets hub + per-post bid feeds
	hub := ws.NewHub()
	wsSrv := ws.NewWsServer(hub, redisClient, postService, defaultSort)

	// 9. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, postService, defaultSort)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
