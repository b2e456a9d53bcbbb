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

	_ "opsdesk/api/swagger" // swagger docs
	"opsdesk/internal/access"
	"opsdesk/internal/broker"
	"opsdesk/internal/config"
	"opsdesk/internal/database"
	"opsdesk/internal/handler"
	"opsdesk/internal/logger"
	"opsdesk/internal/middleware"
	"opsdesk/internal/notify"
	"opsdesk/internal/repository"
	"opsdesk/internal/service"
	"opsdesk/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// activityPublisher is what main needs from either Kafka producer flavour.
type activityPublisher interface {
	service.ActivityPublisher
	Close()
}

// @title           Opsdesk API
// @version         1.0
// @description     Access control, privilege administration and cascade deletion for the Opsdesk business console.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load("configs/.env")
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Logger init failed: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.DB.DSN(), zlog)
	if err != nil {
		zlog.Fatal("Database connection failed", zap.Error(err))
	}
	zlog.Info("Connected to PostgreSQL successfully")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(zlog)
	go wsHub.Run()

	var publisher activityPublisher = broker.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = broker.NewProducer(zlog, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		zlog.Info("Publishing activity to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	var mailer notify.Mailer
	if cfg.SMTP.Host != "" {
		mailer = notify.NewSMTPMailer(cfg.SMTP)
	}
	dispatcher := notify.NewDispatcher(mailer, cfg.SMTP.Recipients, cfg.SMTP.Timeout, zlog)
	if !dispatcher.Enabled() {
		zlog.Info("Email notifications disabled: SMTP_HOST or NOTIFY_RECIPIENTS not set")
	}

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	privilegeRepo := repository.NewPrivilegeRepository(db)
	userRepo := repository.NewUserRepository(db)
	cascadeRepo := repository.NewCascadeRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	financeRepo := repository.NewFinanceRepository(db)

	policy := access.NewPolicy(privilegeRepo, access.Config{
		BreakGlassEmail: cfg.Access.BreakGlassEmail,
		CacheTTL:        cfg.Access.CacheTTL,
	}, zlog)
	if cfg.Access.BreakGlassEmail != "" {
		zlog.Warn("Break-glass access enabled", zap.String("email", cfg.Access.BreakGlassEmail))
	}

	secret := []byte(cfg.JWT.Secret)
	activityService := service.NewActivityService(activityRepo, publisher, zlog)
	privilegeService := service.NewPrivilegeService(privilegeRepo, txManager, policy, activityService, wsHub, zlog)
	userService := service.NewUserService(userRepo, privilegeRepo, policy, txManager, activityService, zlog)
	authService := service.NewAuthService(userRepo, policy, secret, cfg.JWT.TokenTTL, zlog)
	cascadeService := service.NewCascadeService(cascadeRepo, txManager, activityService, wsHub, dispatcher, zlog)
	financeService := service.NewFinanceService(financeRepo)

	ctx := context.Background()
	if err := privilegeService.SeedDefaults(ctx); err != nil {
		zlog.Fatal("Seeding roles failed", zap.Error(err))
	}
	if err := userService.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
		zlog.Fatal("Bootstrap admin failed", zap.Error(err))
	}

	// Initialize Handlers
	auth := middleware.NewAuth(secret, policy, cfg.GinMode == gin.ReleaseMode, zlog)
	authHandler := handler.NewAuthHandler(authService, auth, cfg.JWT.TokenTTL)
	userHandler := handler.NewUserHandler(userService, auth)
	privilegeHandler := handler.NewPrivilegeHandler(privilegeService, auth)
	cascadeHandler := handler.NewCascadeHandler(cascadeService, auth, zlog)
	activityHandler := handler.NewActivityHandler(activityService, auth)
	financeHandler := handler.NewFinanceHandler(financeService, auth)

	// Set up Gin Router
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(zlog))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "ws_clients": wsHub.ClientCount()})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, secret)
	})

	// API Routing
	authHandler.RegisterRoutes(router.Group(""))
	userHandler.RegisterRoutes(router.Group(""))
	privilegeHandler.RegisterRoutes(router.Group(""))
	cascadeHandler.RegisterRoutes(router.Group(""))
	activityHandler.RegisterRoutes(router.Group(""))
	financeHandler.RegisterRoutes(router.Group(""))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	zlog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server shutdown failed", zap.Error(err))
	}
	wsHub.Stop()
	dispatcher.Wait()
	publisher.Close()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
