package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/marketnotify/internal/notification/application"
	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/internal/notification/infrastructure/messaging"
	"github.com/wyfcoding/marketnotify/internal/notification/infrastructure/persistence/cached"
	"github.com/wyfcoding/marketnotify/internal/notification/infrastructure/persistence/mysql"
	"github.com/wyfcoding/marketnotify/internal/notification/infrastructure/realtime"
	"github.com/wyfcoding/marketnotify/internal/notification/infrastructure/sender"
	"github.com/wyfcoding/marketnotify/internal/notification/interfaces/consumer"
	httphandler "github.com/wyfcoding/marketnotify/internal/notification/interfaces/http"
	"github.com/wyfcoding/marketnotify/pkg/cache"
	"github.com/wyfcoding/marketnotify/pkg/config"
	"github.com/wyfcoding/marketnotify/pkg/db"
	"github.com/wyfcoding/marketnotify/pkg/logger"
	"github.com/wyfcoding/marketnotify/pkg/metrics"
	"github.com/wyfcoding/marketnotify/pkg/middleware"
	"github.com/wyfcoding/marketnotify/pkg/mq"
	"github.com/wyfcoding/marketnotify/pkg/ratelimit"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "配置文件路径")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	logger.Info(ctx, "starting notification service",
		"service", cfg.ServiceName, "version", cfg.Version, "environment", cfg.Environment)

	if err := run(ctx, cfg); err != nil {
		logger.Fatal(ctx, "service exited with error", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(cfg.ServiceName)

	// 数据库
	database, err := db.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("database init failed: %w", err)
	}
	defer database.Close()

	if err := database.AutoMigrate(
		&domain.Notification{},
		&domain.AuditEntry{},
		&mysql.PreferenceModel{},
	); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}

	// 限流存储：Redis 可用时共享滑动窗口，否则进程内实现
	var limiter ratelimit.Limiter
	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.New(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
		defer redisCache.Close()
		limiter = ratelimit.NewRedisLimiter(redisCache.Client())
		logger.Info(ctx, "rate limiting backed by redis")
	} else {
		limiter = ratelimit.NewMemoryLimiter()
		logger.Info(ctx, "rate limiting backed by in-process sliding window")
	}

	// 事件发布
	var events domain.EventPublisher = messaging.NewNoopEventPublisher()
	var producer *mq.Producer
	if cfg.Kafka.Enabled {
		producer, err = mq.NewProducer(cfg.Kafka)
		if err != nil {
			return fmt.Errorf("kafka producer init failed: %w", err)
		}
		defer producer.Close()
		events = messaging.NewKafkaEventPublisher(producer, cfg.Kafka.EventTopic)
	}

	// 邮件渠道
	var emailSender domain.EmailSender
	if cfg.Email.Enabled {
		emailSender = sender.NewSMTPSender(cfg.Email)
	} else {
		emailSender = sender.NewLogEmailSender()
	}

	// 实时推送渠道
	hub := realtime.NewHub(ratelimit.Limit{
		Rate:   cfg.Notify.RealtimeRateMaxPerWindow,
		Period: cfg.Notify.RealtimeRateWindow(),
	}, m)
	defer hub.Shutdown()

	// 偏好仓储：Redis 可用时加缓存装饰
	var prefs domain.PreferenceRepository = mysql.NewPreferenceRepository(database)
	if redisCache != nil {
		prefs = cached.NewPreferenceRepository(prefs, redisCache)
	}

	// 业务装配
	svc := application.NewService(application.Options{
		Repo:     mysql.NewNotificationRepository(database),
		Prefs:    prefs,
		Audit:    mysql.NewAuditRepository(database),
		Email:    emailSender,
		Realtime: hub,
		Events:   events,
		Limiter:  limiter,
		Metrics:  m,
		Notify:   cfg.Notify,
	})
	svc.StartSweeper(ctx)

	// 触发事件消费
	if cfg.Kafka.Enabled && len(cfg.Kafka.TriggerTopics) > 0 {
		triggerConsumer, err := mq.NewConsumer(cfg.Kafka, cfg.Kafka.TriggerTopics)
		if err != nil {
			return fmt.Errorf("kafka consumer init failed: %w", err)
		}
		defer triggerConsumer.Close()

		handler := consumer.NewTriggerHandler(svc, cfg.Notify)
		go func() {
			if err := triggerConsumer.Run(ctx, handler.Handle); err != nil {
				logger.Error(ctx, "trigger consumer stopped", "error", err)
			}
		}()
	}

	// HTTP 服务
	engine := newEngine(cfg, m, svc, hub, limiter)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

// newEngine 组装 Gin 引擎：系统路由不鉴权，业务路由经 JWT 中间件
func newEngine(cfg *config.Config, m *metrics.Metrics, svc *application.Service, hub *realtime.Hub, limiter ratelimit.Limiter) *gin.Engine {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		middleware.Recovery(),
		middleware.Logging(),
		middleware.CORS(),
		middleware.Metrics(m),
	)

	sys := engine.Group("/sys")
	{
		sys.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":    "UP",
				"service":   cfg.ServiceName,
				"timestamp": time.Now().Unix(),
			})
		})
		sys.GET("/ready", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "READY"})
		})
	}

	if cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	api := engine.Group("/api/v1")
	if cfg.HTTP.RateLimitPerMinute > 0 {
		api.Use(middleware.RateLimit(limiter, ratelimit.Limit{
			Rate:   cfg.HTTP.RateLimitPerMinute,
			Period: time.Minute,
		}))
	}

	// WebSocket 在握手阶段自行鉴权
	wsHandler := httphandler.NewWSHandler(hub, cfg.Auth.JWTSecret)
	wsHandler.RegisterRoutes(api)

	authed := api.Group("")
	authed.Use(middleware.JWTAuth(cfg.Auth.JWTSecret))
	if cfg.HTTP.IdentityRateLimitRequests > 0 {
		authed.Use(middleware.IdentityRateLimit(limiter, ratelimit.Limit{
			Rate:   cfg.HTTP.IdentityRateLimitRequests,
			Period: cfg.HTTP.IdentityRateLimitWindow(),
		}, cfg.Notify.ExemptAdmins))
	}
	httphandler.NewNotificationHandler(svc).RegisterRoutes(authed)

	return engine
}
