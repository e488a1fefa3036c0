package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/thereayou/loci-chat/internal/cache"
	"github.com/thereayou/loci-chat/internal/config"
	"github.com/thereayou/loci-chat/internal/database"
	"github.com/thereayou/loci-chat/internal/handlers"
	"github.com/thereayou/loci-chat/internal/logger"
	"github.com/thereayou/loci-chat/internal/messages"
	"github.com/thereayou/loci-chat/internal/push"
	"github.com/thereayou/loci-chat/internal/rooms"
	"github.com/thereayou/loci-chat/internal/services"
	"github.com/thereayou/loci-chat/internal/websocket"
	"github.com/thereayou/loci-chat/pkg/auth"
)

type Server struct {
	Config     *config.Config
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	JWTManager *auth.JWTManager
	Hub        *websocket.Hub
}

func NewServer() *Server {
	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, ServiceName: "loci-chat"})

	db, err := database.Open(cfg)
	if err != nil {
		logger.L().Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("database connect failed")
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = cache.Connect(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("redis connect failed")
		}
	} else {
		logger.L().Warn().Msg("REDIS_URL not set, running without token blacklist, directory cache and push queue")
	}

	return New(cfg, db, rdb)
}

// New wires every component around an open database and optional Redis client.
func New(cfg *config.Config, db *database.Database, rdb *redis.Client) *Server {
	var directory services.UserDirectory = db.Directory()
	var dispatcher services.PushDispatcher = push.LogDispatcher{}
	var revocations services.TokenRevocations
	if rdb != nil {
		directory = cache.NewDirectory(db.Directory(), rdb, cfg.Store.DirectoryCacheTTL)
		dispatcher = push.NewQueue(rdb, cfg.Store.PushQueueKey)
		revocations = cache.NewRevocations(rdb)
	}
	notifications := db.Notifications()

	log := messages.NewLog(db, db, directory, notifications, messages.Options{
		PageSizeDefault: cfg.Store.PageSizeDefault,
		PageSizeMax:     cfg.Store.PageSizeMax,
	})
	store := rooms.NewStore(db, directory, log)

	hub := websocket.NewHub(directory, store, websocket.Options{
		IdentifyTimeout: cfg.WS.IdentifyTimeout,
		PongWait:        cfg.WS.PongWait,
		WriteWait:       cfg.WS.WriteWait,
		MaxMessageSize:  cfg.WS.MaxMessageSize,
		SendBuffer:      cfg.WS.SendBuffer,
		StoreTimeout:    cfg.Store.OpTimeout,
	})

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	fanout := handlers.NewFanout(hub, dispatcher, notifications)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	APIEndpoints(router, Endpoints{
		Chats:         handlers.NewChatHandler(store, log, hub, fanout),
		Messages:      handlers.NewMessageHandler(store, log, fanout),
		Notifications: handlers.NewNotificationHandler(notifications, log),
		WebSocket:     handlers.NewWebSocketHandler(hub, handlers.NewGateway(hub, store, log, fanout, cfg.Store.OpTimeout), cfg.WS.AllowedOrigins),
		Health:        handlers.NewHealthHandler(db, rdb),
		Verifier:      jwtMgr,
		Revocations:   revocations,
	})

	return &Server{
		Config:     cfg,
		Router:     router,
		DB:         db,
		Redis:      rdb,
		JWTManager: jwtMgr,
		Hub:        hub,
	}
}

// Run serves until SIGINT or SIGTERM, then drains for up to 30 seconds.
func (s *Server) Run() {
	go s.Hub.Run()

	srv := &http.Server{
		Addr:              ":" + s.Config.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.L().Info().Str("port", s.Config.Port).Str("env", s.Config.Env).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal().Err(err).Msg("server run error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.L().Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.L().Error().Err(err).Msg("http shutdown failed")
	}
	s.Hub.Stop()

	if s.Redis != nil {
		s.Redis.Close()
	}
	if err := s.DB.Close(); err != nil {
		logger.L().Error().Err(err).Msg("database close failed")
	}
	logger.L().Info().Msg("server stopped")
}
