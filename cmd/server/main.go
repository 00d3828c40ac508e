package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"directchat/internal/config"
	"directchat/internal/db"
	clog "directchat/internal/log"
	"directchat/internal/relay"
	"directchat/internal/server"
	"directchat/internal/service"
	"directchat/internal/store"
	"directchat/internal/ws"

	"github.com/rs/zerolog/log"
)

func main() {
	// main 函数负责加载配置、初始化日志、连接数据库并启动 Gin 服务。
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	clog.Init(cfg.Env, cfg.LogLevel)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	gdb, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}
	st := store.NewGormStore(gdb)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub()
	var broadcaster service.Broadcaster = hub
	if cfg.RedisURL != "" {
		rl, err := relay.New(ctx, cfg.RedisURL, hub)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connect")
		}
		defer rl.Close()
		go func() {
			if err := rl.Run(ctx); err != nil {
				log.Error().Err(err).Msg("relay stopped")
			}
		}()
		broadcaster = rl
	}

	chat := service.NewChatService(st, nil,
		service.WithBroadcaster(broadcaster),
		service.WithNotifier(hub),
		service.WithOnline(hub),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.SetupRouter(cfg, st, chat, hub),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Str("db", cfg.DatabaseDriver).Bool("relay", cfg.RedisURL != "").Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
