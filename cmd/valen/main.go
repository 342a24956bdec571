package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sagepharm/valen/internal/config"
	"github.com/sagepharm/valen/internal/gxp/entity"
	"github.com/sagepharm/valen/internal/gxp/handler"
	"github.com/sagepharm/valen/internal/gxp/repository"
	"github.com/sagepharm/valen/internal/gxp/service"
	"github.com/sagepharm/valen/internal/middleware"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
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

	zapLogger.Info("Starting valen service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Asset{},
		&entity.Inspection{},
		&entity.SOP{},
		&entity.ExcelReport{},
		&entity.Draft{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}

	// 种子管理员账号（仅当用户表为空时）
	if err := seedAdmin(db, zapLogger); err != nil {
		zapLogger.Warn("Seed admin warning", zap.Error(err))
	}

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 仓库、服务与处理器
	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, rdb, cfg, zapLogger)
	handlers := handler.NewHandlers(services)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
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
		WriteTimeout: cfg.Server.WriteTimeout,
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

	// 保留内存中的草稿定时器落库机会
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

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

// seedAdmin 首次启动时从环境变量建管理员账号
// 凭证只存bcrypt哈希，环境变量缺省时跳过
func seedAdmin(db *gorm.DB, zapLogger *zap.Logger) error {
	var count int64
	if err := db.Model(&entity.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		zapLogger.Warn("ADMIN_USERNAME/ADMIN_PASSWORD not set, no admin account seeded")
		return nil
	}

	hash, err := service.HashPassword(password)
	if err != nil {
		return err
	}

	admin := &entity.User{
		ID:           strings.ReplaceAll(uuid.New().String(), "-", ""),
		Username:     username,
		Name:         username,
		Role:         entity.RoleAdmin,
		PasswordHash: hash,
	}
	if err := db.Create(admin).Error; err != nil {
		return err
	}
	zapLogger.Info("Seeded admin account", zap.String("username", username))
	return nil
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

	// 上传文件静态访问
	r.Static("/uploads", cfg.Validation.UploadDir)

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证 (无需登录)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// 需要认证的接口
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			// 当前用户
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.POST("/auth/logout", h.Auth.Logout)

			// 看板
			authorized.GET("/dashboard/summary", h.Dashboard.Summary)
			authorized.POST("/translate", h.Dashboard.Translate)

			// 表单参数模式
			authorized.GET("/form-schemas", h.Inspection.Schemas)
			authorized.GET("/form-schemas/:category", h.Inspection.Schema)

			// 验证资产
			authorized.GET("/assets", h.Asset.List)
			authorized.POST("/assets", h.Asset.Create)
			authorized.GET("/assets/:id", h.Asset.Get)
			authorized.PUT("/assets/:id/progress", h.Asset.UpdateProgress)
			authorized.POST("/assets/:id/deviations", h.Asset.RecordDeviation)
			authorized.DELETE("/assets/:id/deviations", h.Asset.CloseDeviation)
			authorized.POST("/assets/:id/protocol", h.Asset.GenerateProtocol)
			authorized.POST("/assets/:id/risk-analysis", h.Asset.AnalyzeRisk)

			// 巡检记录（追加不改）
			authorized.GET("/assets/:id/inspections", h.Inspection.List)
			authorized.POST("/assets/:id/inspections", h.Inspection.Create)

			// SOP文档
			authorized.GET("/assets/:id/sops", h.SOP.List)
			authorized.POST("/assets/:id/sops", h.SOP.Upload)
			authorized.GET("/sops/:id", h.SOP.Get)

			// 表格验证报告
			authorized.GET("/assets/:id/excel-reports", h.Report.List)
			authorized.POST("/assets/:id/excel-reports", h.Report.Analyze)
			authorized.GET("/excel-reports/:id", h.Report.Get)
			authorized.GET("/excel-reports/:id/corrected", h.Report.DownloadCorrected)

			// 表单草稿
			authorized.GET("/drafts", h.Draft.List)
			authorized.POST("/drafts", h.Draft.Touch)
			authorized.POST("/drafts/flush", h.Draft.Flush)
			authorized.DELETE("/drafts", h.Draft.ClearAll)
			authorized.GET("/drafts/:form_key", h.Draft.Restore)
			authorized.DELETE("/drafts/:form_key", h.Draft.Clear)

			// 管理员
			admin := authorized.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				admin.DELETE("/sops/:id", h.SOP.Delete)
			}
		}
	}
}
