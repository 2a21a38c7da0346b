package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travelmate/backend/internal/api/handler"
	"travelmate/backend/internal/chathub"
	"travelmate/backend/internal/config"
	"travelmate/backend/internal/geo"
	"travelmate/backend/internal/localization"
	"travelmate/backend/internal/logger"
	"travelmate/backend/internal/messages"
	"travelmate/backend/internal/notify"
	"travelmate/backend/internal/proximity"
	"travelmate/backend/internal/requests"
	"travelmate/backend/internal/rooms"
	"travelmate/backend/internal/storage"
	"travelmate/backend/internal/telegram"
	"travelmate/backend/internal/unread"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupDatabase(cfg *config.Config, log *logrus.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect PostgreSQL")
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.WithError(err).Fatal("failed to access connection pool")
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	return db
}

func setupRedis(ctx context.Context, cfg *config.Config, log *logrus.Logger) *redis.Client {
	if !cfg.RedisEnabled() {
		log.Warn("redis.addr not set: counters are kept in memory and realtime events stay on this instance")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("failed to connect Redis")
	}
	return rdb
}

// telegramStack holds the push pipeline; its zero value means Telegram is off.
type telegramStack struct {
	pusher notify.Pusher
	link   func(userID string) string
	client *asynq.Client
	worker *asynq.Server
}

func setupTelegram(ctx context.Context, cfg *config.Config, st storage.Storage, log *logrus.Logger) telegramStack {
	if !cfg.TelegramEnabled() {
		return telegramStack{}
	}

	localizer, err := localization.Default()
	if err != nil {
		log.WithError(err).Fatal("failed to load locales")
	}
	bot, err := telegram.Connect(cfg.Telegram.BotToken, log)
	if err != nil {
		log.WithError(err).Fatal("failed to start Telegram bot")
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	client := asynq.NewClient(redisOpt)
	worker := notify.NewWorker(redisOpt, cfg.Notify.Queue, log)
	pushHandler := notify.NewPushHandler(telegram.NewNotifier(bot, st, localizer, log), log)
	if err := worker.Start(notify.NewServeMux(pushHandler)); err != nil {
		log.WithError(err).Fatal("failed to start push worker")
	}

	secret := []byte(cfg.Auth.JWTSecret)
	go telegram.NewBotService(bot, st, localizer, secret, log).Run(ctx)

	return telegramStack{
		pusher: notify.NewQueueNotifier(client, cfg.Notify.Queue),
		link: func(userID string) string {
			return telegram.LinkURL(bot.Self.UserName, secret, userID)
		},
		client: client,
		worker: worker,
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting travelmate backend")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Persistence
	st := storage.NewStorageService(setupDatabase(cfg, log), log)
	if err := st.Migrate(); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}
	rdb := setupRedis(ctx, cfg, log)

	// 2. Realtime hub and notification fan-out
	hub := chathub.NewManagerService(rdb, log)
	go hub.Run(ctx)

	tg := setupTelegram(ctx, cfg, st, log)
	dispatcher := notify.NewDispatcherService(hub, tg.pusher, cfg.Notify.Timeout, log)

	var counterStore unread.CounterStore = unread.NewMemoryCounterStore()
	if rdb != nil {
		counterStore = unread.NewRedisCounterStore(rdb, cfg.Redis.CounterTTL)
	}

	// 3. Domain services
	counters := unread.NewAggregatorService(st, counterStore, log)
	directory := rooms.NewDirectoryService(st, cfg.Chat.GatheringCapacity, log)
	ledger := requests.NewLedgerService(st, directory, dispatcher, counters, log)
	store := messages.NewStoreService(st, dispatcher, counters, cfg.Chat.MaxMessageLength, cfg.Chat.PageSize, log)
	finder := proximity.NewFinderService(st, ledger, geo.NewFuzzer(), log)

	// 4. HTTP
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(ledger, directory, store, finder, counters, hub, log)
	h.TelegramLink = tg.link

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: h.Router(handler.RouterConfig{
			JWTSecret:      []byte(cfg.Auth.JWTSecret),
			CORSOrigins:    cfg.Server.CORSOrigins,
			RequestTimeout: cfg.Server.RequestTimeout,
			WriteRate:      cfg.Server.WriteRate,
			WriteBurst:     cfg.Server.WriteBurst,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	<-hub.Done()
	dispatcher.Wait()

	if tg.worker != nil {
		tg.worker.Shutdown()
		_ = tg.client.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info("bye")
}
