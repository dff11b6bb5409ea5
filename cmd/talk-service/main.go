package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/foodfortalk/talk-service/config"
	"github.com/foodfortalk/talk-service/internal/app"
	grpcx "github.com/foodfortalk/talk-service/internal/transport/grpc"
	httpx "github.com/foodfortalk/talk-service/internal/transport/http"
	"github.com/foodfortalk/talk-service/internal/transport/ws"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	app.InitLogger(cfg.Logging)
	slog.Info("starting talk-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "history", cfg.Storage.History)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- storage + services ---
	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("init failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer a.Close()

	// --- WS ---
	wsServer := ws.NewServer(a.Directory, a.Chat, a.Signals, a.Registry, a.Metrics, ws.Config{
		SendBuffer:     cfg.Chat.SendBuffer,
		PingEvery:      cfg.Chat.PingEvery,
		WriteWait:      cfg.Chat.WriteWait,
		TypingThrottle: cfg.Chat.TypingThrottle,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})

	// --- HTTP ---
	router := httpx.NewRouter(httpx.Deps{
		Handler:        httpx.NewHandler(a.Chat, a.Directory, a.Registry),
		Admin:          httpx.NewAdminHandler(a.Admin),
		Auth:           a.Directory,
		AdminToken:     cfg.Security.AdminToken,
		WS:             wsServer.HandleWS,
		Metrics:        a.Metrics.Handler(),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	httpSrv := httpx.NewServer(httpx.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}, router)

	// --- gRPC health ---
	grpcSrv := grpcx.NewServer(grpcx.Config{Addr: cfg.GRPC.Addr}, a.Ping)

	// --- run both servers ---
	errCh := make(chan error, 2)
	go func() { errCh <- httpSrv.Run(ctx, wsServer.Shutdown) }()
	go func() { errCh <- grpcSrv.Run(ctx) }()

	// --- graceful shutdown ---
	var failed bool
	for range 2 {
		if err := <-errCh; err != nil {
			slog.Error("server error", slog.Any("err", err))
			failed = true
			stop()
		}
	}
	slog.Info("stopped")
	if failed {
		a.Close()
		os.Exit(1)
	}
}
