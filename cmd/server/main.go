package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hyeunung/hanslworkspace-sub000/internal/config"
	"github.com/hyeunung/hanslworkspace-sub000/internal/middleware"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/entity"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/handler"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/repository"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/service"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/sse"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting purchase workspace service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.Employee{},
		&entity.PurchaseRequest{},
		&entity.PurchaseItem{},
		&entity.ReceiptEntry{},
		&entity.SupportTicket{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}

	// purchase_id 必须可空：删除采购单时只清引用，工单保留
	db.Exec("ALTER TABLE purchase_support_tickets ALTER COLUMN purchase_id DROP NOT NULL")

	// 初始化Redis
	rdb := initRedis(cfg.Redis)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("Redis unavailable, session cache degraded", zap.Error(err))
	}

	// 仓储与服务
	repos := repository.NewRepositories(db)
	sessions := service.NewSessionService(repos.Employee, rdb, cfg.Cache.SessionTTL, zapLogger)
	hub := sse.NewHub(zapLogger)
	mgr := service.NewManager(repos.Purchase, hub, zapLogger, cfg.Cache.FreshnessWindow, cfg.Cache.RecentLimit)

	handlers := handler.NewHandlers(mgr, sessions, repos.Ticket, hub)

	// 创建路由
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // Disable for SSE long-lived connections
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	// 在途远端写入全部落库后再退出
	mgr.Flush()

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWT.Secret))

	// SSE事件流
	api.GET("/sse/events", h.SSE.Stream)

	// 看板
	api.GET("/dashboard/summary", h.Dashboard.Summary)

	// 采购单
	purchases := api.Group("/purchases")
	{
		purchases.GET("", h.Purchase.List)
		purchases.POST("", h.Purchase.Create)
		purchases.POST("/refresh", h.Purchase.Refresh)
		purchases.GET("/:id", h.Purchase.Get)
		purchases.PUT("/:id", h.Purchase.Update)
		purchases.DELETE("/:id", h.Purchase.Delete)

		purchases.POST("/:id/middle-approve", h.Purchase.ApproveMiddle)
		purchases.POST("/:id/middle-reject", h.Purchase.RejectMiddle)
		purchases.POST("/:id/final-approve", h.Purchase.ApproveFinal)
		purchases.POST("/:id/final-reject", h.Purchase.RejectFinal)

		purchases.POST("/:id/expenditure", h.Purchase.SetBulkExpenditure)
		purchases.POST("/:id/utk-check", h.Purchase.SetUTKChecked)

		purchases.DELETE("/:id/items/:item_id", h.Purchase.RemoveItem)
		purchases.POST("/:id/items/:item_id/payment-complete", h.Purchase.CompleteItemPayment)
		purchases.POST("/:id/items/:item_id/payment-cancel", h.Purchase.CancelItemPayment)
		purchases.POST("/:id/items/:item_id/receipts", h.Purchase.ReceiveItem)
		purchases.POST("/:id/items/:item_id/statement-confirm", h.Purchase.ConfirmItemStatement)
		purchases.POST("/:id/items/:item_id/statement-cancel", h.Purchase.CancelItemStatement)
		purchases.POST("/:id/items/:item_id/expenditure", h.Purchase.SetItemExpenditure)

		purchases.POST("/:id/tickets", h.Ticket.Create)
		purchases.GET("/:id/tickets", h.Ticket.ListByPurchase)
	}

	// 支援工单
	api.POST("/tickets/:ticket_id/resolve", h.Ticket.Resolve)
}
