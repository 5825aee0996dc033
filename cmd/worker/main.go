package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberlane/backend-shop/internal/common"
	"github.com/emberlane/backend-shop/internal/config"
	"github.com/emberlane/backend-shop/internal/notify"
	"github.com/emberlane/backend-shop/internal/obs"
	"github.com/emberlane/backend-shop/internal/queue"
	"github.com/emberlane/backend-shop/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("json", "info").Fatal().Err(err).Msg("load configuration")
	}
	log := obs.NewLogger(cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	var sender common.EmailSender = common.NopEmailSender{}
	if cfg.NotifyEmailEnabled {
		sender = common.LogEmailSender{Logger: log}
	}
	mailer := &notify.Mailer{
		Store:      store.New(pool),
		Sender:     sender,
		OwnerEmail: cfg.OwnerEmail,
		Log:        log,
	}

	opt, err := queue.RedisOpt(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("parse queue redis url")
	}
	srv := queue.NewServer(opt, cfg.QueueConcurrency)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskOrderEmail, mailer.HandleOrderEmail)

	go func() {
		log.Info().Int("concurrency", cfg.QueueConcurrency).Msg("worker started")
		if err := srv.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("worker server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down worker")
	srv.Shutdown()
}
