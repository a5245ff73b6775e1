package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-ticket-booking/internal/api"
	"github.com/sanosuguru/go-ticket-booking/internal/api/handler"
	apimiddleware "github.com/sanosuguru/go-ticket-booking/internal/api/middleware"
	"github.com/sanosuguru/go-ticket-booking/internal/application"
	"github.com/sanosuguru/go-ticket-booking/internal/config"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/pricing"
	"github.com/sanosuguru/go-ticket-booking/internal/infrastructure/payment"
	"github.com/sanosuguru/go-ticket-booking/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-ticket-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-ticket-booking/internal/notifier"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-ticket-booking/internal/worker"
)

func main() {
	// .env ファイルの読み込み（存在しない場合は無視）
	_ = godotenv.Load()

	cfg := config.Load()

	// ロガー初期化
	log := logger.Init(cfg.Env)
	defer func() { _ = logger.Sync() }()

	// データベース接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal("データベース接続に失敗", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	if err := postgres.Ping(ctx, db); err != nil {
		log.Fatal("データベース疎通確認に失敗", zap.Error(err))
	}

	// マイグレーション実行
	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := postgres.RunMigrations(db.DB, migrationsPath); err != nil {
		log.Fatal("マイグレーションに失敗", zap.Error(err))
	}

	// Redis接続（助言キャッシュ・需要カウンター）
	redisClient := redisinfra.NewClient(&cfg.Redis)
	defer redisClient.Close()

	var holdCache application.SeatHoldCache
	var demandRecorder application.DemandRecorder
	if err := redisinfra.Ping(ctx, redisClient); err != nil {
		// キャッシュは助言的であり、正しさには影響しないためRedisなしでも起動する
		log.Warn("Redis接続に失敗（キャッシュなしで継続）", zap.Error(err))
	} else {
		holdCache = redisinfra.NewHoldCache(redisClient)
		demandRecorder = redisinfra.NewDemandRecorder(redisClient, redisinfra.DefaultDemandWindow, 200)
	}

	// イベント通知（AMQP URLが未設定の場合は無効化）
	var eventNotifier notifier.Notifier = notifier.Nop{}
	if cfg.AMQP.URL != "" {
		amqpNotifier := notifier.NewAMQPNotifier(cfg.AMQP.URL)
		defer amqpNotifier.Close()
		eventNotifier = amqpNotifier
	}

	// メトリクス
	m := metrics.New()

	// リポジトリ
	txManager := postgres.NewTxManager(db)
	inventoryRepo := postgres.NewInventoryRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	eventRepo := postgres.NewEventRepository(db)
	venueRepo := postgres.NewVenueRepository(db)

	// 価格エンジンと決済プロバイダー
	engine := pricing.NewStandardEngine(pricing.DefaultPriceTable(), 10000)
	demandModel := pricing.NewLinearDemandModel(0.3)
	provider := payment.NewMockProvider()

	// アプリケーションサービス
	lockService := application.NewSeatLockService(
		txManager, inventoryRepo, eventRepo, venueRepo,
		holdCache, eventNotifier, m, cfg.Lock.TTL,
	)
	bookingService := application.NewBookingService(
		txManager, orderRepo, inventoryRepo, eventRepo, venueRepo,
		engine, demandModel, demandRecorder, eventNotifier, m, cfg.Lock.TTL,
	)
	paymentService := application.NewPaymentService(
		txManager, orderRepo, inventoryRepo, provider,
		cfg.Payment.Secret, cfg.Payment.Currency, eventNotifier, m,
	)
	cancelService := application.NewCancellationService(
		txManager, orderRepo, inventoryRepo, holdCache, eventNotifier, m,
	)

	// バックグラウンドワーカー
	reclaimer := worker.NewExpiredLockReclaimer(lockService, cfg.Lock.ReclaimInterval)
	sweeper := worker.NewAbandonedOrderSweeper(cancelService, cfg.Order.SweepInterval, cfg.Order.AbandonTimeout)

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	go reclaimer.Start(workerCtx)
	go sweeper.Start(workerCtx)

	// Echoサーバー
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	apimiddleware.SetupMiddleware(e)
	e.Use(apimiddleware.PrometheusMiddleware(m))

	// ハンドラー
	lockHandler := handler.NewLockHandler(lockService)
	bookingHandler := handler.NewBookingHandler(bookingService, cancelService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	healthHandler := handler.NewHealthHandler()

	// ルーティング
	v1 := e.Group("/api/v1")
	v1.GET("/health", healthHandler.Check)

	v1.GET("/events/:event_id/seats", lockHandler.ListSeats)
	v1.POST("/events/:event_id/seats/:seat_id/lock", lockHandler.Acquire)
	v1.DELETE("/events/:event_id/seats/:seat_id/lock", lockHandler.Release)
	v1.POST("/events/:event_id/inventory/materialize", lockHandler.Materialize)

	v1.POST("/bookings", bookingHandler.Book)
	v1.GET("/bookings/:id", bookingHandler.GetByID)
	v1.POST("/bookings/:id/cancel", bookingHandler.Cancel)
	v1.POST("/bookings/:id/payment-intent", paymentHandler.CreateIntent)
	v1.POST("/bookings/:id/payment/confirm", paymentHandler.Confirm)

	// Prometheusメトリクス（Basic認証は環境変数設定時のみ有効）
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), apimiddleware.MetricsBasicAuth())

	// サーバー起動
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	log.Info("サーバー起動完了",
		zap.String("port", cfg.Server.Port),
		zap.String("env", cfg.Env),
	)

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("サーバーをシャットダウンしています...")

	// ワーカー停止
	cancelWorkers()
	reclaimer.Stop()
	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Fatal("サーバーシャットダウンエラー", zap.Error(err))
	}

	log.Info("サーバーが正常にシャットダウンしました")
}
