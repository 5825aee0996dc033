package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/emberlane/backend-shop/internal/analytics"
	"github.com/emberlane/backend-shop/internal/auth"
	"github.com/emberlane/backend-shop/internal/cart"
	"github.com/emberlane/backend-shop/internal/catalog"
	"github.com/emberlane/backend-shop/internal/checkout"
	"github.com/emberlane/backend-shop/internal/common"
	"github.com/emberlane/backend-shop/internal/config"
	"github.com/emberlane/backend-shop/internal/events"
	"github.com/emberlane/backend-shop/internal/health"
	"github.com/emberlane/backend-shop/internal/notify"
	"github.com/emberlane/backend-shop/internal/obs"
	"github.com/emberlane/backend-shop/internal/order"
	"github.com/emberlane/backend-shop/internal/payment"
	"github.com/emberlane/backend-shop/internal/queue"
	"github.com/emberlane/backend-shop/internal/ratelimit"
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

	if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "backend-shop-api",
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: cfg.TraceSamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("init tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			log.Warn().Err(err).Msg("instrument redis tracing")
		}
	}

	registry := prometheus.NewRegistry()
	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, nil, registry)
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, registry)

	st := store.New(pool)
	validate := validator.New()

	asynqOpt, err := queue.RedisOpt(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("parse queue redis url")
	}
	asynqClient := queue.NewClient(asynqOpt)
	defer asynqClient.Close()

	bus := &events.Bus{
		Store: st,
		Notifiers: []events.Notifier{
			&notify.Enqueuer{Client: asynqClient, Log: log},
		},
		Log: log,
	}

	authSvc := &auth.Service{
		Store:    st,
		Secret:   []byte(cfg.JWTSecret),
		TokenTTL: cfg.AccessTokenTTL,
		Log:      log,
	}
	catalogSvc := &catalog.Service{
		Store: st,
		Cache: &catalog.Cache{R: rdb, TTL: cfg.CatalogCacheTTL, Log: log},
		Log:   log,
	}
	cartSvc := &cart.Service{Store: st, Products: st, Log: log}
	provider := &payment.StripeProvider{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		BaseURL:       cfg.StripeBaseURL,
		HTTP: &http.Client{
			Timeout:   20 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	checkoutSvc := &checkout.Service{
		Carts:      cartSvc,
		Products:   st,
		Provider:   provider,
		Currency:   cfg.CurrencyCode,
		TaxRateBPS: cfg.TaxRateBPS,
		SuccessURL: cfg.FrontendURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  cfg.FrontendURL + "/cart",
		Log:        log,
	}
	orderSvc := &order.Service{Store: st, Bus: bus, Log: log}
	analyticsSvc := &analytics.Service{
		Store:    st,
		Redis:    rdb,
		CacheTTL: cfg.AnalyticsCacheTTL,
		Log:      log,
	}
	webhook := &payment.WebhookHandler{
		Provider:  provider,
		Store:     st,
		Bus:       bus,
		Redis:     rdb,
		ReplayTTL: cfg.WebhookReplayTTL,
		Log:       log,
	}

	authHandlers := &auth.Handlers{Svc: authSvc, Validate: validate}
	catalogHandlers := &catalog.Handlers{Svc: catalogSvc, Validate: validate}
	catalogAdmin := &catalog.AdminHandlers{Svc: catalogSvc, Validate: validate}
	cartHandlers := &cart.Handlers{
		Svc:          cartSvc,
		CookieSecret: cfg.JWTSecret,
		CookieTTL:    cfg.GuestCartTTL,
		SecureCookie: cfg.IsProduction(),
	}
	checkoutHandlers := &checkout.Handlers{
		Svc:          checkoutSvc,
		Validate:     validate,
		CookieSecret: cfg.JWTSecret,
		CookieTTL:    cfg.GuestCartTTL,
		SecureCookie: cfg.IsProduction(),
	}
	orderHandlers := &order.Handlers{Svc: orderSvc}
	orderAdmin := &order.AdminHandlers{Svc: orderSvc, Validate: validate}
	analyticsHandlers := &analytics.Handlers{Svc: analyticsSvc}
	healthHandlers := &health.Handlers{Pool: pool, Redis: rdb}

	authLimiter, err := ratelimit.New(rdb, cfg.RateLimitAuthPerMinute)
	if err != nil {
		log.Fatal().Err(err).Msg("create rate limiter")
	}
	idem := common.Idem{R: rdb, TTL: cfg.IdempotencyTTL}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(obs.RoutePatternMiddleware)
	if cfg.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: log}.Middleware)
	r.Use(authSvc.Authenticate)

	r.Get("/healthz", healthHandlers.Live)
	r.Get("/readyz", healthHandlers.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(ratelimit.Middleware(authLimiter, log))
			authHandlers.Routes(r)
		})
		r.Route("/products", catalogHandlers.Routes)
		r.Route("/cart", cartHandlers.Routes)
		r.With(idem.Middleware).Post("/checkout", checkoutHandlers.Start)
		r.Post("/webhooks/payment", webhook.ServeHTTP)
		r.Route("/orders", func(r chi.Router) {
			r.Use(auth.RequireAuth)
			orderHandlers.Routes(r)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Route("/products", catalogAdmin.Routes)
			r.Route("/orders", orderAdmin.Routes)
			r.Route("/analytics", analyticsHandlers.Routes)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
