package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/config"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/account"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/call"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/mediasoup"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/registry"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/subscriber"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/events"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/handler"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/middleware"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/redis"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/repository"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/services"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/sfu"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/storage"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/transport/httpdto"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/websocket"
	"github.com/Palindrome-Puzzles/jolly-roger/pkg/database"
	"github.com/Palindrome-Puzzles/jolly-roger/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(cfg.Server.Environment)
	logger.SetGlobalLogger(l)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&registry.Server{},
		&subscriber.Subscriber{},
		&call.Call{},
		&call.Peer{},
		&mediasoup.Router{},
		&mediasoup.ProducerServer{},
		&mediasoup.ConnectRequest{},
		&account.User{},
		&account.APIKey{},
		&account.Setting{},
		&account.UploadToken{},
	); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redis.Initialize(redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	rdb := redis.GetClient()

	bus := events.NewRedisEventBus(rdb, events.NewChannelResolver(), l)
	if err := bus.Start(); err != nil {
		log.Fatalf("Failed to start event bus: %v", err)
	}
	defer bus.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repositories
	servers := repository.NewServerRepository(db)
	subscribers := repository.NewSubscriberRepository(db)
	calls := repository.NewCallRepository(db)
	routers := repository.NewRouterRepository(db)
	producers := repository.NewProducerRepository(db)
	requests := repository.NewConnectRequestRepository(db)
	users := repository.NewUserRepository(db)
	apiKeys := repository.NewAPIKeyRepository(db)
	settings := repository.NewSettingRepository(db)
	uploadTokens := repository.NewUploadTokenRepository(db)

	heartbeats := redis.NewHeartbeatStore(rdb)
	locks := redis.NewLockStore(rdb, 30*time.Second)
	engine := sfu.NewWorkerClient(cfg.SFU.WorkerControlURL)

	registrySvc := services.NewRegistryService(servers, subscribers, calls, routers, producers, requests, heartbeats, bus, l)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	self, err := registrySvc.RegisterServer(ctx, hostname, os.Getpid())
	if err != nil {
		log.Fatalf("Failed to register server: %v", err)
	}
	l.Infof("registered server %s (%s pid %d)", self.ID, hostname, os.Getpid())

	// Services
	subscriberSvc := services.NewSubscriberService(subscribers, servers, bus, l)
	callSvc := services.NewCallService(calls, routers, producers, users, engine, self.ID, bus, l)
	signalingSvc := services.NewSignalingService(requests, producers, engine, self.ID, bus, l, cfg.Coordination.HandshakeTimeout)
	authSvc := services.NewAuthService(users, bus, cfg)
	apiKeySvc := services.NewAPIKeyService(apiKeys, users, locks, l)
	pubSvc := services.NewPublicationService(users, settings, bus, l)
	sweeper := services.NewSweeper(cfg.Coordination, registrySvc, signalingSvc, uploadTokens, heartbeats, l)

	var uploadSvc *services.UploadService
	if blobs, err := storage.NewClient(ctx, storage.S3Config{
		Region:    cfg.Storage.S3Region,
		Bucket:    cfg.Storage.S3Bucket,
		Endpoint:  cfg.Storage.S3Endpoint,
		AccessKey: cfg.Storage.S3AccessKey,
		SecretKey: cfg.Storage.S3SecretKey,
	}); err != nil {
		l.Warnf("object storage not configured, uploads disabled: %v", err)
	} else {
		uploadSvc = services.NewUploadService(uploadTokens, blobs, cfg.Coordination.UploadTokenTTL, l)
	}

	// Background loops
	go registrySvc.RunHeartbeatLoop(ctx, self.ID, cfg.Coordination.HeartbeatInterval)
	go signalingSvc.Run(ctx, bus)
	go sweeper.Run(ctx)

	// Websocket fan-out
	hub := websocket.NewHub(l)
	go hub.Run(ctx)
	websocket.NewRedisBridge(bus, hub).Attach()
	views := websocket.DefaultViewRegistry(pubSvc, servers, calls, producers, cfg.Coordination.StalenessThreshold)
	wsHandler := websocket.NewHandler(authSvc, subscriberSvc, views, hub, self.ID, l)

	// HTTP surface
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(l))
	r.Use(middleware.ErrorHandler(l))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"server": self.ID}))
	})

	authHandler := handler.NewAuthHandler(authSvc)
	callHandler := handler.NewCallHandler(callSvc)
	registryHandler := handler.NewRegistryHandler(registrySvc, cfg.Coordination.StalenessThreshold)
	signalingHandler := handler.NewSignalingHandler(signalingSvc, cfg.Coordination.HandshakeTimeout)
	apiKeyHandler := handler.NewAPIKeyHandler(apiKeySvc)
	settingsHandler := handler.NewSettingsHandler(pubSvc)

	v1 := r.Group("/api/v1")
	v1.POST("/auth/register", authHandler.Register)
	v1.POST("/auth/login", authHandler.Login)
	v1.GET("/has-users", settingsHandler.HasUsers)
	v1.GET("/ws", wsHandler.Connect)

	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware(authSvc, apiKeySvc))
	authed.GET("/auth/me", authHandler.Me)
	authed.GET("/servers", registryHandler.ListLive)
	authed.GET("/team-name", settingsHandler.TeamName)
	authed.PUT("/team-name", settingsHandler.SetTeamName)

	authed.POST("/calls", callHandler.Create)
	authed.GET("/calls/:id", callHandler.GetByID)
	authed.POST("/calls/:id/router", callHandler.EnsureRouter)
	authed.POST("/calls/:id/close", callHandler.Close)
	authed.POST("/calls/:id/join", callHandler.Join)
	authed.POST("/calls/:id/leave", callHandler.Leave)
	authed.GET("/calls/:id/peers", callHandler.ListPeers)
	authed.PUT("/calls/:id/mute", callHandler.SetMuted)
	authed.PUT("/calls/:id/deafen", callHandler.SetDeafened)
	authed.POST("/calls/:id/remote-mute", callHandler.RemoteMute)

	authed.POST("/signaling/connect", signalingHandler.Connect)
	authed.DELETE("/signaling/transports/:id", signalingHandler.TeardownTransport)

	authed.GET("/api-key", apiKeyHandler.Fetch)
	authed.POST("/api-key/roll", apiKeyHandler.Roll)

	if uploadSvc != nil {
		uploadHandler := handler.NewUploadHandler(uploadSvc)
		authed.POST("/uploads/tokens", uploadHandler.CreateToken)
		v1.PUT("/uploads/:token", uploadHandler.Upload)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		l.Infof("starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Infof("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Errorf("server shutdown: %v", err)
	}

	// Deregister cleanly so peers do not have to wait out the staleness
	// threshold before reclaiming this server's state.
	if err := registrySvc.UnregisterServer(shutdownCtx, self.ID); err != nil {
		l.Errorf("unregister server: %v", err)
	}
	cancel()
}
