package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	config "github.com/rishabh280305/SehatMitra-sub000/config/calls"
	"github.com/rishabh280305/SehatMitra-sub000/gateways/web"
	"github.com/rishabh280305/SehatMitra-sub000/gateways/web/clients/directory"
	"github.com/rishabh280305/SehatMitra-sub000/pkg/logger"
	sig "github.com/rishabh280305/SehatMitra-sub000/services/calls/signal"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/storage"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/usecase"
)

func main() {
	// Optional .env for local development.
	godotenv.Load()

	log := logger.New(logger.Config{
		Level:      slog.LevelDebug,
		Output:     os.Stderr,
		AddSource:  true,
		JSONFormat: false,
	})

	cfg := config.MustLoad()
	log.Info("configuration loaded",
		slog.Int("port", cfg.Port),
		slog.Duration("ring_timeout", cfg.RingTimeout),
		slog.Duration("session_ttl", cfg.SessionTTL))

	ctx := logger.WithContext(context.Background(), log)

	rootCtx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer cancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("failed to run()", slog.String("error", err.Error()))
		return
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	sessions, err := newSessionStore(cfg, log)
	if err != nil {
		return err
	}
	defer sessions.Close()

	schedules, err := newScheduleStore(cfg, log)
	if err != nil {
		return err
	}
	defer schedules.Close()

	router := sig.NewRouter(log)
	dir := directory.New(&cfg.UserService, log)

	uc := usecase.New(usecase.Options{
		Sessions:    sessions,
		Schedules:   schedules,
		Directory:   dir,
		Relay:       router,
		RingTimeout: cfg.RingTimeout,
		SessionTTL:  cfg.SessionTTL,
		Log:         log,
	})

	srv := web.New(cfg, uc, router, log)
	return srv.Start(ctx)
}

func newSessionStore(cfg *config.Config, log *slog.Logger) (storage.SessionStore, error) {
	if cfg.Redis.Addr == "" {
		log.Warn("REDIS_ADDR not set, using in-memory session store")
		return storage.NewMemorySessionStore(), nil
	}
	return storage.NewRedisSessionStore(&cfg.Redis, cfg.SessionTTL, log)
}

func newScheduleStore(cfg *config.Config, log *slog.Logger) (storage.ScheduleStore, error) {
	if cfg.Database.Host == "" {
		log.Warn("DB_HOST not set, using in-memory schedule store")
		return storage.NewMemoryScheduleStore(), nil
	}
	return storage.NewPostgresScheduleStore(&cfg.Database, log)
}
