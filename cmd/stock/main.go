package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/stone-stock/internal/bot"
	"github.com/Spok95/stone-stock/internal/config"
	"github.com/Spok95/stone-stock/internal/dialog"
	"github.com/Spok95/stone-stock/internal/domain/materials"
	"github.com/Spok95/stone-stock/internal/domain/slabs"
	"github.com/Spok95/stone-stock/internal/domain/users"
	"github.com/Spok95/stone-stock/internal/importer"
	"github.com/Spok95/stone-stock/internal/infra/archive"
	"github.com/Spok95/stone-stock/internal/infra/db"
	httpx "github.com/Spok95/stone-stock/internal/infra/http"
	"github.com/Spok95/stone-stock/internal/infra/live"
	"github.com/Spok95/stone-stock/internal/infra/logger"
	"github.com/Spok95/stone-stock/internal/infra/redislock"
	"github.com/Spok95/stone-stock/internal/report"
)

func configPath() string {
	if p := os.Getenv("APP_CONFIG"); p != "" {
		return p
	}
	return "config/example.yaml"
}

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)
	if loc, err := time.LoadLocation(cfg.App.Timezone); err == nil {
		time.Local = loc
	} else {
		log.Warn("unknown timezone, using system default", "tz", cfg.App.Timezone, "err", err)
	}

	if err := db.Migrate(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("db connected")

	usersRepo := users.NewRepo(pool)
	statesRepo := dialog.NewRepo(pool)
	materialsRepo := materials.NewRepo(pool)
	slabsRepo := slabs.NewRepo(pool, cfg.Import.PageSize)

	hub := live.NewHub(log, cfg.HTTP.CORSOrigins)
	tracker := importer.NewTracker()
	go hub.Listen(ctx, pool)
	go hub.ForwardProgress(ctx, tracker)

	var guard importer.Guard = &importer.LocalGuard{}
	if cfg.Redis.Enabled {
		rdb, err := redislock.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			log.Error("redis connect failed", "addr", cfg.Redis.Addr, "err", err)
			os.Exit(1)
		}
		defer func() { _ = rdb.Close() }()
		guard = redislock.New(rdb, cfg.Redis.LockTTL, log)
		log.Info("redis import lock enabled", "addr", cfg.Redis.Addr)
	}

	var store *archive.Store
	if cfg.Archive.Enabled {
		store, err = archive.New(ctx, archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			Bucket:    cfg.Archive.Bucket,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
		}, log)
		if err != nil {
			log.Error("archive init failed", "err", err)
			os.Exit(1)
		}
		log.Info("workbook archive enabled", "bucket", cfg.Archive.Bucket)
	}

	imp := importer.New(importer.Deps{
		Slabs:     slabsRepo,
		Materials: materialsRepo,
		Tracker:   tracker,
		Guard:     guard,
		Live:      hub,
		Reloader:  hub,
		Log:       log,
		Writer: importer.WriterConfig{
			BatchSize: cfg.Import.BatchSize,
			Attempts:  cfg.Import.Attempts,
			BaseDelay: cfg.Import.RetryDelay,
		},
		ClearAfter: cfg.Import.ClearAfter,
		MaxUnits:   cfg.Import.MaxUnits,
	})
	composer := report.NewComposer(slabsRepo, materialsRepo, log)
	matcher := slabs.NewMatcher(slabsRepo)

	deps := httpx.RouterDeps{
		Auth:          httpx.NewAuth(cfg.Auth.JWTSecret),
		Importer:      imp,
		Progress:      tracker,
		Exporter:      composer,
		Matcher:       matcher,
		Purger:        slabsRepo,
		Users:         usersRepo,
		Live:          hub,
		Log:           log,
		CORSOrigins:   cfg.HTTP.CORSOrigins,
		ExposeMetrics: cfg.Metrics.Enabled,
	}
	if store != nil {
		deps.Archive = store
	}
	srv := httpx.New(cfg.HTTP.Addr, httpx.NewRouter(deps))
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("http server error", "err", err)
			stop()
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	if cfg.Telegram.Enabled {
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Error("telegram init failed", "err", err)
			os.Exit(1)
		}
		log.Info("telegram bot authorized", "username", api.Self.UserName)

		b := bot.New(api, log, bot.Deps{
			Users:    usersRepo,
			States:   statesRepo,
			Importer: imp,
			Exporter: composer,
			Matcher:  matcher,
			Slabs:    slabsRepo,
			Archive:  store,
		})
		go func() {
			if err := b.Run(ctx, cfg.Telegram.PollTimeout); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("bot stopped", "err", err)
			}
		}()
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "err", err)
	}
	log.Info("graceful shutdown complete", slog.String("reason", context.Cause(ctx).Error()))
}
