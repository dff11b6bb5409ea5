package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foodfortalk/talk-service/config"
	"github.com/foodfortalk/talk-service/internal/moderation"
	"github.com/foodfortalk/talk-service/internal/observability"
	"github.com/foodfortalk/talk-service/internal/postgres"
	"github.com/foodfortalk/talk-service/internal/presence"
	"github.com/foodfortalk/talk-service/internal/security"
	"github.com/foodfortalk/talk-service/internal/service"
	"github.com/foodfortalk/talk-service/internal/storage/badgerstore"
	"github.com/foodfortalk/talk-service/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds the wired components shared by talk-service and talkctl.
type App struct {
	Cfg          *config.Config
	Pool         *pgxpool.Pool
	Participants *postgres.ParticipantRepo
	History      service.HistoryStore
	Registry     *presence.Registry
	Metrics      *observability.Metrics
	Tokens       *security.TokenIssuer
	Directory    *service.DirectoryService
	Signals      *service.SignalService
	Chat         *service.ChatService
	Admin        *service.AdminService

	closers []func() error
}

func InitLogger(cfg config.Logging) *slog.Logger {
	return logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Env),
		Service:   cfg.Service,
		Version:   cfg.Version,
		Backend:   logger.Backend(cfg.Backend),
		AddSource: cfg.AddSource,
		Debug:     cfg.Debug,
	})
}

// New connects to Postgres, applies migrations and wires the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Cfg: cfg}

	pool, err := postgres.NewPool(ctx, postgres.Config{
		DSN:               cfg.Postgres.DSN,
		MaxConns:          cfg.Postgres.MaxConns,
		MinConns:          cfg.Postgres.MinConns,
		MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
		MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
		HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
		ApplicationName:   cfg.Postgres.ApplicationName,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	applied, err := postgres.Migrate(ctx, pool)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if len(applied) > 0 {
		slog.Info("migrations applied", "ids", applied)
	}

	switch cfg.Storage.History {
	case config.HistoryBadger:
		store, err := badgerstore.Open(cfg.Storage.BadgerPath, slog.Default())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("history store: %w", err)
		}
		a.History = store
		a.closers = append(a.closers, store.Close)
	default:
		a.History = postgres.NewMessageRepo(pool)
	}
	slog.Info("history store ready", "backend", cfg.Storage.History)

	censor, err := moderation.NewCensor(cfg.Chat.CensoredWords, cfg.Chat.CensorRune())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("censor: %w", err)
	}

	a.Participants = postgres.NewParticipantRepo(pool)
	a.Registry = presence.NewRegistry()
	a.Metrics = observability.NewMetrics()
	a.Metrics.RegisterPresence(a.Registry.Online)

	jwtCfg := cfg.Security.JWT
	a.Tokens = security.NewTokenIssuer(jwtCfg.Secret, jwtCfg.Issuer, jwtCfg.Audience, jwtCfg.AccessTTL, jwtCfg.ClockSkew)

	now := time.Now
	a.Directory = service.NewDirectoryService(a.Participants, a.Tokens, cfg.Chat.StoreTimeout, now)
	a.Signals = service.NewSignalService(a.Registry, a.Metrics, now)
	a.Chat = service.NewChatService(a.History, a.Directory, a.Registry, a.Signals, censor, a.Metrics, service.ChatConfig{
		HistoryLimit:     cfg.Chat.HistoryLimit,
		MaxContentLength: cfg.Chat.MaxContentLength,
		StoreTimeout:     cfg.Chat.StoreTimeout,
		Welcome:          cfg.Chat.Welcome,
	}, now)
	a.Admin = service.NewAdminService(a.Participants, a.Chat, a.Registry, a.Tokens, now)

	return a, nil
}

// Ping checks the database.
func (a *App) Ping(ctx context.Context) error {
	return postgres.Ping(ctx, a.Pool)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", slog.Any("err", err))
		}
	}
	a.closers = nil
}
