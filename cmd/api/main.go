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

	validator "github.com/go-playground/validator/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"

	"github.com/aurelle-london/backend-aurelle/internal/analytics"
	"github.com/aurelle-london/backend-aurelle/internal/app"
	"github.com/aurelle-london/backend-aurelle/internal/audit"
	"github.com/aurelle-london/backend-aurelle/internal/auth"
	"github.com/aurelle-london/backend-aurelle/internal/cart"
	"github.com/aurelle-london/backend-aurelle/internal/checkout"
	"github.com/aurelle-london/backend-aurelle/internal/common"
	"github.com/aurelle-london/backend-aurelle/internal/config"
	"github.com/aurelle-london/backend-aurelle/internal/db"
	"github.com/aurelle-london/backend-aurelle/internal/events"
	"github.com/aurelle-london/backend-aurelle/internal/health"
	"github.com/aurelle-london/backend-aurelle/internal/notify"
	"github.com/aurelle-london/backend-aurelle/internal/obs"
	"github.com/aurelle-london/backend-aurelle/internal/offeradmin"
	"github.com/aurelle-london/backend-aurelle/internal/order"
	"github.com/aurelle-london/backend-aurelle/internal/ratelimit"
	"github.com/aurelle-london/backend-aurelle/internal/security"
	"github.com/aurelle-london/backend-aurelle/internal/settings"
	"github.com/aurelle-london/backend-aurelle/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "aurelle-api",
			Endpoint:      cfg.OTLPEndpoint,
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "aurelle-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	if envBool("DB_AUTO_MIGRATE", true) {
		migrator, err := db.Migrator(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("build migrator")
		}
		if err := app.RunMigrations(migrator); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	queries := store.New(pool)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	taskConnOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for tasks")
	}
	taskClient := asynq.NewClient(taskConnOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	validate := validator.New()

	var authSvc *auth.Service
	if cfg.JWKSURL != "" {
		authSvc, err = auth.NewService(context.Background(), auth.Options{
			JWKSURL:   cfg.JWKSURL,
			Issuer:    envOrDefault("AUTH_ISSUER", ""),
			Audience:  envOrDefault("AUTH_AUDIENCE", ""),
			ClockSkew: 30 * time.Second,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise auth service")
		}
	} else {
		logger.Warn().Msg("JWKS_URL not set; requests are treated as guest sessions")
	}
	authMiddleware := auth.Middleware{Service: authSvc}

	mailer := common.NopEmailSender{}
	emailNotifier := notify.EmailNotifier{
		Mail:    mailer,
		Enabled: envBool("NOTIFY_EMAIL_ENABLED", false),
		From:    envOrDefault("NOTIFY_EMAIL_FROM", "orders@aurelle.example"),
	}
	bus := &events.Bus{
		Store:     queries,
		Notifiers: []events.Notifier{emailNotifier},
	}

	cartSvc := &cart.Service{Q: queries}
	cartHandler := &cart.Handler{Svc: cartSvc, Validate: validate}

	checkoutSvc := &checkout.Service{
		Q:      queries,
		Pool:   pool,
		Events: bus,
		Tasks:  events.AsynqEnqueuer{Client: taskClient},
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	orderSvc := &order.Service{Q: queries, Events: bus}
	orderHandler := &order.Handler{Svc: orderSvc}
	orderAdmin := &order.AdminHandler{Svc: orderSvc}

	settingsSvc := &settings.Service{Q: queries}
	settingsHandler := &settings.Handler{Svc: settingsSvc, Validate: validate, Events: bus}

	offerAdmin := &offeradmin.Handler{Q: queries}

	analyticsSvc := &analytics.Service{
		Q:            queries,
		R:            redisClient,
		TTL:          envDurationMillis("ANALYTICS_CACHE_TTL_MS", 60000),
		DefaultRange: envInt("ANALYTICS_DEFAULT_RANGE_DAYS", 30),
	}
	analyticsHandler := &analytics.Handler{Svc: analyticsSvc}

	auditSvc := audit.Service{
		Store:   queries,
		Enabled: envBool("AUDIT_ENABLED", true),
	}
	auditRecorder := audit.HTTPRecorder{
		Service: &auditSvc,
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit entry") },
	}
	auditHandler := audit.Handler{Store: queries}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	publicLimiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:"},
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return common.ClientIP(r) },
			Window: time.Minute,
			Max:    envInt("RATELIMIT_PUBLIC_PER_MINUTE", 120),
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limit check") },
	}

	limiterStore, err := app.NewLimiterStore(redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise limiter store")
	}
	adminLimiter := app.NewAdminLimiter(limiterStore, limiter.Rate{
		Period: time.Minute,
		Limit:  int64(envInt("RATELIMIT_ADMIN_PER_MINUTE", 60)),
	})

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, buckets, nil)
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
	r.Use(security.Headers{Enable: true}.Middleware)
	if envBool("SECURE_CSRF_ENABLED", false) {
		r.Use(security.CSRF{Header: "X-CSRF-Token"}.Middleware)
	}
	r.Use(security.BodyLimit{Max: int64(envInt("SECURE_MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Session-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(publicLimiter.Middleware)
		v.Use(authMiddleware.Authenticate)

		v.Get("/cart", cartHandler.Get)
		v.Post("/cart/add", cartHandler.AddItem)
		v.Put("/cart/item/{id}", cartHandler.UpdateItem)
		v.Delete("/cart/item/{id}", cartHandler.RemoveItem)
		v.With(authMiddleware.RequireAuth).Post("/cart/link", cartHandler.Link)

		v.Post("/offers/apply", cartHandler.ApplyOffer)
		v.Delete("/offers/apply", cartHandler.RemoveOffer)

		v.With(idem.Middleware).Post("/orders", checkoutHandler.Create)
		v.Get("/orders", orderHandler.List)
		v.Get("/orders/{id}", orderHandler.Get)
		v.Get("/orders/{id}/history", orderHandler.History)

		v.Get("/settings", settingsHandler.Get)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(requireAdminKey(cfg.AdminAPIKey))
			admin.Use(ululeLimit(adminLimiter))

			admin.With(auditRecorder.Middleware(audit.HTTPConfig{ResourceType: "settings"})).
				Put("/settings", settingsHandler.Update)

			admin.Get("/offers", offerAdmin.List)
			admin.With(auditRecorder.Middleware(audit.HTTPConfig{ResourceType: "offers"})).
				Post("/offers", offerAdmin.Create)
			admin.With(auditRecorder.Middleware(audit.HTTPConfig{ResourceType: "offers", ResourceIDParam: "id"})).
				Delete("/offers/{id}", offerAdmin.Deactivate)

			admin.With(auditRecorder.Middleware(audit.HTTPConfig{ResourceType: "orders", ResourceIDParam: "id"})).
				Patch("/orders/{id}/status", orderAdmin.PatchStatus)

			admin.Get("/analytics/revenue", analyticsHandler.Revenue)
			admin.Get("/analytics/top-offers", analyticsHandler.TopOffers)
			admin.Get("/audit", auditHandler.List)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

// requireAdminKey guards back-office routes with a static API key; the
// storefront never carries it.
func requireAdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				common.JSONError(w, http.StatusServiceUnavailable, "ADMIN_DISABLED", "admin API key not configured", nil)
				return
			}
			provided := strings.TrimSpace(r.Header.Get("X-Admin-Key"))
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "invalid admin key", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ululeLimit(l *limiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lctx, err := l.Get(r.Context(), common.ClientIP(r))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
			if lctx.Reached {
				common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
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
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
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
