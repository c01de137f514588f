package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/slowdrip-api/internal/auth"
	"github.com/noah-isme/slowdrip-api/internal/basket"
	"github.com/noah-isme/slowdrip-api/internal/catalog"
	"github.com/noah-isme/slowdrip-api/internal/common"
	"github.com/noah-isme/slowdrip-api/internal/config"
	"github.com/noah-isme/slowdrip-api/internal/db"
	"github.com/noah-isme/slowdrip-api/internal/events"
	"github.com/noah-isme/slowdrip-api/internal/favorites"
	"github.com/noah-isme/slowdrip-api/internal/health"
	"github.com/noah-isme/slowdrip-api/internal/lock"
	"github.com/noah-isme/slowdrip-api/internal/notify"
	"github.com/noah-isme/slowdrip-api/internal/obs"
	"github.com/noah-isme/slowdrip-api/internal/order"
	"github.com/noah-isme/slowdrip-api/internal/queue"
	"github.com/noah-isme/slowdrip-api/internal/ratelimit"
	"github.com/noah-isme/slowdrip-api/internal/receipt"
	"github.com/noah-isme/slowdrip-api/internal/resilience"
	"github.com/noah-isme/slowdrip-api/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "slowdrip")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	resilience.MustRegisterMetrics(metricsNamespace, nil)
	queue.MustRegisterMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "slowdrip-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := connectRedis(ctx, cfg, logger, metricsEnabled)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	var probes []health.Probe
	var menu catalog.Store
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migrate database")
		}
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pool, err = db.Connect(connectCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("connect database")
		}
		defer pool.Close()
		menu = &catalog.PostgresStore{DB: pool}
		probes = append(probes, health.PostgresProbe(pool))
	} else {
		seeded, err := catalog.NewSeededMemoryStore()
		if err != nil {
			logger.Fatal().Err(err).Msg("load seed menu")
		}
		menu = seeded
		logger.Warn().Msg("DATABASE_URL not set, serving the embedded menu from memory")
	}
	if redisClient != nil {
		probes = append(probes, health.RedisProbe(redisClient))
	}

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Store:        menu,
		Cache:        catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		Logger:       logger.With().Str("component", "catalog").Logger(),
		DefaultLimit: cfg.CatalogDefaultLimit,
		MaxLimit:     cfg.CatalogMaxLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogSvc})

	var basketStore basket.Store = basket.NewMemoryStore()
	if redisClient != nil {
		basketStore = basket.RedisStore{Client: redisClient, TTL: cfg.BasketTTL, Prefix: "basket:"}
	}
	baskets, err := basket.NewService(basket.Config{
		Catalog:     catalogSvc,
		Store:       basketStore,
		Logger:      logger.With().Str("component", "basket").Logger(),
		SaveTimeout: cfg.BasketSaveTimeout,
		IdleTTL:     cfg.BasketTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("basket service")
	}

	engine := receipt.NewEngine(receipt.Config{
		Branding: receipt.Branding{Name: cfg.ShopName, Tagline: cfg.ShopTagline},
		Logger:   logger.With().Str("component", "receipt").Logger(),
	})
	engine.Start()
	probes = append(probes, health.ReadySignal("receipt", engine.Ready))

	var eventLog events.Log = events.NewMemoryLog(0)
	if redisClient != nil {
		eventLog = events.RedisLog{Client: redisClient, Key: "events:recent", Size: 500}
	}
	taskQueue := queue.Enqueuer{R: redisClient, Prefix: cfg.QueuePrefix, DedupTTL: cfg.IdempotencyTTL}
	channels := []notify.Channel{notify.LogChannel{Logger: logger}}
	if cfg.OrderWebhookURL != "" {
		if cfg.WebhookDelivery == "queue" {
			channels = append(channels, notify.Queued{Queue: taskQueue, MaxAttempts: cfg.QueueMaxAttempts})
		} else {
			channels = append(channels, notify.NewWebhook(cfg.OrderWebhookURL, cfg.OrderWebhookSecret, redisClient, logger))
		}
	}
	relay := notify.NewRelay(notify.RelayConfig{
		Channels: channels,
		Logger:   logger.With().Str("component", "notify").Logger(),
	})
	bus := &events.Bus{Store: eventLog, Notifiers: []events.Notifier{relay}}

	var locker lock.Locker = &lock.Local{}
	if redisClient != nil {
		locker = lock.Redis{Client: redisClient}
	}
	clock, err := order.NewClock(cfg.OrderTimezone, cfg.OrderTimeFormat)
	if err != nil {
		logger.Fatal().Err(err).Msg("order clock")
	}
	orders, err := order.NewService(order.Config{
		Baskets:       baskets,
		Catalog:       catalogSvc,
		Receipts:      engine,
		Events:        bus,
		Locker:        locker,
		LockTTL:       cfg.OrderSubmitLockTTL,
		Clock:         clock,
		TelegramURL:   cfg.TelegramURL,
		RenderTimeout: cfg.ReceiptReadyTimeout,
		Logger:        logger.With().Str("component", "order").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("order service")
	}

	users := auth.NewMemoryUsers()
	authSvc, err := auth.NewService(auth.Config{
		Users:          users,
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("auth service")
	}
	if cfg.AdminPassword != "" {
		if _, err := authSvc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			logger.Fatal().Err(err).Msg("create admin account")
		}
	}
	authHandler := &auth.Handler{Service: authSvc}
	authMiddleware := auth.Middleware{Service: authSvc}

	submitLimiter, err := ratelimit.NewFixed(redisClient, "rl:order:", cfg.OrderRateLimitWindow, cfg.OrderRateLimitMax)
	if err != nil {
		logger.Fatal().Err(err).Msg("order rate limiter")
	}
	onLimiterErr := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }
	orderLimit := ratelimit.Handler{Limiter: submitLimiter, Key: ratelimit.BySession("order:"), OnError: onLimiterErr}
	loginLimit := ratelimit.Handler{
		Limiter: ratelimit.Sliding{Client: redisClient, Prefix: "rl:login:", Window: time.Minute, Max: 10},
		Key:     ratelimit.ByClientIP("login:"),
		OnError: onLimiterErr,
	}
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	basketHandler := &basket.Handler{Svc: baskets}
	orderHandler := &order.Handler{Svc: orders}
	ordersAdmin := &order.AdminHandler{Log: eventLog}
	queueAdmin := &queue.AdminHandler{Queue: taskQueue}
	favoritesHandler := &favorites.Handler{Svc: newFavorites(redisClient, cfg, catalogSvc)}
	contactHandler := notify.ContactHandler{Contact: notify.Contact{
		Telegram: cfg.TelegramURL,
		Facebook: cfg.ContactFacebook,
		Phone:    cfg.ContactPhone,
		MapURL:   cfg.ContactMapURL,
		Address:  cfg.ContactAddress,
		Hours:    cfg.ContactHours,
	}}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		Enable:                cfg.SecurityHeadersEnabled,
		EnableHSTS:            !cfg.IsDevelopment(),
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
	}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", basket.SessionHeader},
		ExposedHeaders:   []string{basket.SessionHeader, "Content-Disposition", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", cfg.IsDevelopment()) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{Probes: withTimeout(probes, envDurationMillis("HEALTH_READY_TIMEOUT_MS", 500))}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/categories", catalogHandler.Categories)
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{id}", catalogHandler.Product)
		v.Get("/products/{id}/options", catalogHandler.ProductOptions)
		v.Get("/contact", contactHandler.Get)

		v.Route("/auth", func(a chi.Router) {
			a.Post("/register", authHandler.Register)
			a.With(loginLimit.Middleware).Post("/login", authHandler.Login)
			a.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		v.Group(func(s chi.Router) {
			s.Use(basket.SessionMiddleware)
			s.Use(authMiddleware.Authenticate)

			s.Post("/pricing/quote", basketHandler.Quote)

			s.Route("/basket", func(b chi.Router) {
				b.Get("/", basketHandler.Get)
				b.Delete("/", basketHandler.Clear)
				b.Post("/items", basketHandler.AddItem)
				b.Patch("/items/{index}", basketHandler.UpdateItem)
				b.Delete("/items/{index}", basketHandler.RemoveItem)
				b.Post("/preview", orderHandler.Preview)
				b.Delete("/preview", orderHandler.ClosePreview)
				b.Get("/receipt", orderHandler.Receipt)
				b.With(orderLimit.Middleware, idem.Middleware).Post("/submit", orderHandler.Submit)
			})
			s.With(orderLimit.Middleware, idem.Middleware).Post("/orders/quick", orderHandler.Quick)

			s.Route("/favorites", func(f chi.Router) {
				f.Get("/", favoritesHandler.List)
				f.Post("/", favoritesHandler.Toggle)
				f.Get("/{id}", favoritesHandler.Check)
			})
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireRole(auth.RoleAdmin))
			admin.Post("/products", catalogHandler.AdminCreateProduct)
			admin.Put("/products/{id}", catalogHandler.AdminUpdateProduct)
			admin.Delete("/products/{id}", catalogHandler.AdminDeleteProduct)
			admin.Post("/categories", catalogHandler.AdminCreateCategory)
			admin.Put("/categories/{id}", catalogHandler.AdminUpdateCategory)
			admin.Delete("/categories/{id}", catalogHandler.AdminDeleteCategory)
			admin.Get("/orders", ordersAdmin.Recent)
			admin.Get("/queue/stats", queueAdmin.Stats)
			admin.Post("/queue/dlq/replay", queueAdmin.ReplayDLQ)
		})
	})

	go sweepBaskets(ctx, baskets, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	baskets.Close()
	relay.Wait()
	engine.Close()
	logger.Info().Msg("server stopped")
}

func connectRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metricsEnabled bool) *redis.Client {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set, baskets live in memory and caching, locking and idempotency are disabled")
		return nil
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error().Err(err).Msg("ping redis")
	}
	return client
}

func newFavorites(client *redis.Client, cfg *config.Config, menu favorites.ProductReader) *favorites.Service {
	var store favorites.Store = favorites.NewMemoryStore()
	if client != nil {
		store = favorites.RedisStore{Client: client, TTL: cfg.BasketTTL}
	}
	return &favorites.Service{Store: store, Catalog: menu}
}

// sweepBaskets evicts idle sessions from memory.
func sweepBaskets(ctx context.Context, baskets *basket.Service, logger zerolog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := baskets.Sweep(); n > 0 {
				logger.Debug().Int("evicted", n).Msg("basket sweep")
			}
		}
	}
}

func withTimeout(probes []health.Probe, timeout time.Duration) []health.Probe {
	for i := range probes {
		if probes[i].Timeout == 0 {
			probes[i].Timeout = timeout
		}
	}
	return probes
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
