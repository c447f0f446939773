package main

import (
	"clurb/internal/activity"
	"clurb/internal/agent"
	"clurb/internal/annotation"
	"clurb/internal/auth"
	"clurb/internal/chat"
	"clurb/internal/config"
	"clurb/internal/document"
	"clurb/internal/friend"
	"clurb/internal/middleware"
	"clurb/internal/presence"
	"clurb/internal/progress"
	"clurb/internal/realtime"
	"clurb/internal/storage"
	"clurb/internal/stream"
	"clurb/internal/user"
	"clurb/internal/worker"
	"clurb/redis"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redisLib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	presenceTTL       = 90 * time.Second
	streamHeartbeat   = 30 * time.Second
	activityQueueSize = 256
)

type app struct {
	log      *zap.Logger
	router   *gin.Engine
	redis    *redisLib.Client
	pool     *worker.WorkerPool
	progress *progress.Tracker
}

func newApp(ctx context.Context, database *gorm.DB, log *zap.Logger) (*app, error) {
	cfg := config.AppConfig

	auth.SetSecret(cfg.JWTSecret)

	redisClient := redis.Connect(ctx, log)

	var broker realtime.Broker = realtime.NewMemoryBroker()
	var presenceStore presence.Store = presence.NewMemoryStore()
	if redisClient != nil {
		broker = realtime.NewRedisBroker(redisClient, log)
		presenceStore = presence.NewRedisStore(redisClient, presenceTTL)
	}

	blobs, err := storage.NewS3Store(ctx, storage.S3Options{
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		PublicURL: cfg.S3PublicURL,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}

	pool := worker.NewWorkerPool(cfg.WorkerPoolSize, activityQueueSize, log)
	recorder := activity.NewRecorder(activity.NewRepository(database), pool, log)

	// Repositories
	userRepo := user.NewRepository(database)
	docRepo := document.NewRepository(database)
	progressRepo := progress.NewRepository(database)

	// Session sync components
	progressTracker := progress.NewTracker(progressRepo, recorder, cfg.ProgressDebounce, log)
	presenceTracker := presence.NewTracker(presenceStore, broker, log)
	presenceTracker.OnUserGone(progressTracker.Cancel)

	// Services
	userService := user.NewService(userRepo)
	docService := document.NewService(document.Deps{
		Repository: docRepo,
		Users:      userService,
		Store:      blobs,
		Cache:      redis.NewCache(redisClient),
		Presence:   presenceTracker,
		Progress:   progressTracker,
		Recorder:   recorder,
		Logger:     log,
	})
	progressTracker.OnWritten(docService.InvalidateLibrary)
	progressService := progress.NewService(progressRepo, progressTracker, docService)
	annotationService := annotation.NewService(annotation.NewRepository(database), docService, recorder, log)
	chatService := chat.NewService(chat.NewRepository(database), docService, broker, recorder, chat.Options{
		HistoryLimit:  cfg.ChatHistoryLimit,
		RatePerSecond: cfg.ChatRatePerSecond,
	}, log)
	activityService := activity.NewService(activity.NewRepository(database))
	friendService := friend.NewService(friend.NewRepository(database), log)

	model, err := agent.NewModel(agent.ModelOptions{
		APIKey:  cfg.AgentAPIKey,
		Model:   cfg.AgentModel,
		BaseURL: cfg.AgentBaseURL,
	})
	if err != nil {
		return nil, err
	}
	if model == nil {
		log.Info("Reading assistant disabled, AGENT_API_KEY is not set")
	}
	toolbox := agent.NewToolbox(agent.NewLibrary(database), activityService, friendService)
	agentService := agent.NewService(agent.NewRepository(database), toolbox, model, log)

	handlers := handlers{
		user:       user.NewHandler(userService, log),
		document:   document.NewHandler(docService),
		progress:   progress.NewHandler(progressService),
		annotation: annotation.NewHandler(annotationService),
		chat:       chat.NewHandler(chatService),
		stream:     stream.NewHandler(docService, presenceTracker, broker, streamHeartbeat, log),
		activity:   activity.NewHandler(activityService),
		friend:     friend.NewHandler(friendService),
		agent:      agent.NewHandler(agentService),
	}

	authMiddleware := &middleware.Auth{UserService: userService}

	return &app{
		log:      log,
		router:   newRouter(handlers, authMiddleware, log),
		redis:    redisClient,
		pool:     pool,
		progress: progressTracker,
	}, nil
}

type handlers struct {
	user       *user.Handler
	document   *document.Handler
	progress   *progress.Handler
	annotation *annotation.Handler
	chat       *chat.Handler
	stream     *stream.Handler
	activity   *activity.Handler
	friend     *friend.Handler
	agent      *agent.Handler
}

func corsConfig() cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
	}

	if config.AppConfig.Environment == "development" {
		// reflect any origin in development
		c.AllowOriginFunc = func(string) bool { return true }
	} else {
		c.AllowOrigins = []string{config.AppConfig.FrontendAddress}
	}
	return c
}

func newRouter(h handlers, authMiddleware *middleware.Auth, log *zap.Logger) *gin.Engine {
	if config.AppConfig.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	logging := middleware.NewLoggingMiddleware(log)
	router.Use(logging.LogRequest(), logging.RecoverPanic())
	router.Use(cors.New(corsConfig()))
	router.Use(middleware.ErrorHandler(log))

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// User routes
	credentials := middleware.NewIPRateLimiter(1, 5).Middleware()
	router.POST("/register", credentials, h.user.Register)
	router.POST("/login", credentials, h.user.Login)
	router.POST("/refresh", h.user.RefreshToken)

	authed := router.Group("/", authMiddleware.AuthMiddleWare())
	authed.DELETE("/logout", h.user.Logout)
	authed.GET("/profile", h.user.GetProfile)
	authed.PATCH("/profile", h.user.UpdateProfile)
	authed.GET("/users/search", h.user.SearchUsers)

	// Library
	authed.POST("/documents", h.document.Upload)
	authed.GET("/documents", h.document.ShowUserDocuments)
	authed.GET("/documents/:id", h.document.ShowDocument)
	authed.PATCH("/documents/:id", h.document.Rename)
	authed.DELETE("/documents/:id", h.document.DeleteDocument)
	authed.PUT("/documents/:id/total-pages", h.document.SetTotalPages)
	authed.GET("/documents/:id/pages/:page/text", h.document.PageText)

	// Memberships and invitations
	authed.GET("/documents/:id/members", h.document.ListMembers)
	authed.PUT("/documents/:id/members/:userId", h.document.ChangeRole)
	authed.DELETE("/documents/:id/members/:userId", h.document.RemoveMember)
	authed.DELETE("/documents/:id/membership", h.document.Leave)
	authed.POST("/documents/:id/invitations", h.document.Invite)
	authed.GET("/invitations", h.document.ListInvitations)
	authed.PATCH("/invitations/:id", h.document.RespondInvitation)

	// Reading session
	authed.PUT("/documents/:id/progress", h.progress.RecordPage)
	authed.GET("/documents/:id/progress", h.progress.Show)
	authed.POST("/documents/:id/annotations", h.annotation.Create)
	authed.GET("/documents/:id/annotations", h.annotation.ListByPage)
	authed.PATCH("/annotations/:id/position", h.annotation.UpdatePosition)
	authed.DELETE("/annotations/:id", h.annotation.Delete)
	authed.POST("/documents/:id/messages", h.chat.Send)
	authed.GET("/documents/:id/messages", h.chat.Recent)
	authed.GET("/documents/:id/events", h.stream.Events)

	// Activity
	authed.GET("/activity", h.activity.Recent)
	authed.GET("/activity/summary", h.activity.Summary)
	authed.GET("/activity/daily", h.activity.Daily)

	// Friends
	authed.GET("/friends", h.friend.List)
	authed.POST("/friends/requests", h.friend.Request)
	authed.PATCH("/friends/requests/:id", h.friend.Respond)

	// Reading assistant
	authed.GET("/agent/chats", h.agent.ListChats)
	authed.POST("/agent/chats", h.agent.CreateChat)
	authed.GET("/agent/chats/:id", h.agent.GetChat)
	authed.PATCH("/agent/chats/:id", h.agent.RenameChat)
	authed.DELETE("/agent/chats/:id", h.agent.DeleteChat)
	authed.POST("/agent/chats/:id/messages", h.agent.AddMessage)
	authed.POST("/agent/chats/:id/ask", h.agent.Ask)
	authed.POST("/agent/chats/:id/generate-title", h.agent.GenerateTitle)

	return router
}

// drainSessions writes pending reading progress, then ends open event
// streams so their presence entries are removed. The order matters: a
// stream's last leave cancels the pending write of its user.
func drainSessions(tracker *progress.Tracker, cancelStreams context.CancelFunc) {
	tracker.Close()
	cancelStreams()
}

func (a *app) run() error {
	baseCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()

	serverPort := config.AppConfig.ServerPort
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", serverPort),
		Handler:     a.router.Handler(),
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Server listening", zap.String("port", serverPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case <-quit:
	case serveErr = <-errCh:
		a.log.Error("Server failed to start", zap.Error(serveErr))
	}
	a.log.Info("Shutting down server...")

	drainSessions(a.progress, cancelStreams)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		a.log.Warn("Server shutdown error", zap.Error(err))
	}

	a.pool.Shutdown()
	if a.redis != nil {
		a.redis.Close()
	}

	a.log.Info("Server shutdown complete")
	return serveErr
}
