package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/attachments"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/directory"
	"messaging-service/internal/handlers"
	"messaging-service/internal/logger"
	"messaging-service/internal/middleware"
	"messaging-service/internal/notify"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/typing"
	"messaging-service/internal/ws"
)

func main() {
	cfg, err := config.Load(os.Getenv("MESSAGING_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, "messaging-service", cfg.Tracing.Endpoint)
	if err != nil {
		zlog.Warnw("tracing disabled", "error", err)
	} else {
		defer shutdownTracing(context.Background())
	}

	database, err := db.Connect(cfg.DB.DSN)
	if err != nil {
		zlog.Fatalw("failed to connect to db", "error", err)
	}
	defer database.Close()

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, zlog)
	defer auditPublisher.Close()
	audit := telemetry.NewAuditEmitter(auditPublisher, "audit.messaging", "messaging-service", cfg.App.Env, zlog)

	if cfg.AMQP.URL != "" {
		eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			zlog.Warnw("event publishing disabled", "error", err)
		} else {
			observability.SetPublisher(eventPublisher)
			defer eventPublisher.Close()
		}
	}

	instanceID := uuid.NewString()
	hub := ws.NewHub()

	var signalStore typing.SignalStore = typing.NoopStore{}
	var redisStore *typing.RedisStore
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			zlog.Warnw("redis unavailable, typing signals stay local", "error", err)
		} else {
			redisStore = typing.NewRedisStore(rdb, cfg.Redis.Prefix, instanceID)
			signalStore = redisStore
		}
	}

	coordinator := typing.NewCoordinator(hub, signalStore, cfg.TypingExpiry, zlog)
	if redisStore != nil {
		go coordinator.RunRelay(ctx, redisStore)
	}

	blobStore, err := attachments.NewS3Store(ctx, cfg.Blob.Region, cfg.Blob.Bucket, cfg.Blob.PublicRead)
	if err != nil {
		zlog.Fatalw("failed to init blob store", "error", err)
	}
	pipeline := attachments.NewPipeline(blobStore, cfg.MaxFileSizeMB, zlog)

	dirClient := directory.NewHTTPClient(cfg.Directory.BaseURL, cfg.Directory.Timeout)

	convRepo := repositories.NewConversationRepo(database)
	msgRepo := repositories.NewMessageRepo(database)
	notifRepo := repositories.NewNotificationRepo(database)

	fanout := notify.NewFanout(notifRepo, hub, zlog)

	convHandler := handlers.NewConversationHandler(convRepo, msgRepo, dirClient, hub, audit)
	msgHandler := handlers.NewMessageHandler(convRepo, msgRepo, pipeline, fanout, coordinator, hub, zlog)
	notifHandler := handlers.NewNotificationHandler(notifRepo)
	typingHandler := handlers.NewTypingHandler(convRepo, coordinator)

	streamWS := ws.NewConversationStreamHandler(hub, convRepo, msgRepo, dirClient, coordinator, zlog)
	notifyWS := ws.NewNotificationStreamHandler(hub, dirClient, zlog)

	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("messaging-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(dirClient)

	router.GET("/conversations", authMiddleware, convHandler.List)
	router.POST("/conversations", authMiddleware, convHandler.Create)
	router.POST("/conversations/direct", authMiddleware, convHandler.StartDirect)
	router.GET("/conversations/:conversation_id", authMiddleware, convHandler.Get)

	router.GET("/conversations/:conversation_id/messages", authMiddleware, msgHandler.List)
	router.POST("/conversations/:conversation_id/messages", authMiddleware, msgHandler.Send)
	router.POST("/conversations/:conversation_id/files", authMiddleware, msgHandler.SendFile)
	router.PATCH("/conversations/:conversation_id/messages/:message_id", authMiddleware, msgHandler.Edit)
	router.DELETE("/conversations/:conversation_id/messages/:message_id", authMiddleware, msgHandler.Delete)
	router.PUT("/conversations/:conversation_id/messages/:message_id/reactions", authMiddleware, msgHandler.React)
	router.DELETE("/conversations/:conversation_id/messages/:message_id/reactions", authMiddleware, msgHandler.Unreact)
	router.POST("/conversations/:conversation_id/messages/:message_id/delivered", authMiddleware, msgHandler.MarkDelivered)
	router.POST("/conversations/:conversation_id/messages/:message_id/read", authMiddleware, msgHandler.MarkRead)

	router.PUT("/conversations/:conversation_id/typing", authMiddleware, typingHandler.Set)
	router.GET("/presence/:user_id", authMiddleware, typingHandler.Presence)

	router.GET("/notifications", authMiddleware, notifHandler.List)
	router.POST("/notifications/:notification_id/read", authMiddleware, notifHandler.MarkRead)
	router.GET("/notifications/unread-count", authMiddleware, notifHandler.UnreadCount)

	router.GET("/ws/conversations/:conversation_id", streamWS.Handle)
	router.GET("/ws/notifications", notifyWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	go func() {
		zlog.Infow("listening", "port", cfg.App.Port, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatalw("server error", "error", err)
		}
	}()

	<-ctx.Done()
	zlog.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warnw("shutdown incomplete", "error", err)
	}
}
