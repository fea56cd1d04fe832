package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zenGate-Global/venuedesk/contracts"
	bookings "github.com/zenGate-Global/venuedesk/domains/bookings/be"
	tenants "github.com/zenGate-Global/venuedesk/domains/tenants/be"
	usershandler "github.com/zenGate-Global/venuedesk/domains/users/be/handler"
	usersrepo "github.com/zenGate-Global/venuedesk/domains/users/be/repo"
	usersservice "github.com/zenGate-Global/venuedesk/domains/users/be/service"
	platformauth "github.com/zenGate-Global/venuedesk/platform/go/auth"
	platformlogging "github.com/zenGate-Global/venuedesk/platform/go/logging"
	platformmiddleware "github.com/zenGate-Global/venuedesk/platform/go/middleware"
	"github.com/zenGate-Global/venuedesk/platform/go/persistence"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	TenantCacheTTL  time.Duration `env:"TENANT_CACHE_TTL" envDefault:"1m"`

	DatabaseURL       string        `env:"DATABASE_URL,required"`
	DatabaseDriver    string        `env:"DATABASE_DRIVER" envDefault:"auto"` // auto | pgx | pooler | http
	DatabaseHTTP      string        `env:"DATABASE_HTTP_ENDPOINT"`
	DatabaseHTTPTime  time.Duration `env:"DATABASE_HTTP_TIMEOUT" envDefault:"30s"`
	DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns        int32         `env:"DB_MIN_CONNS" envDefault:"0"`
	DBMaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	PrivilegedDBRole  string        `env:"PRIVILEGED_DB_ROLE" envDefault:"venue_platform_admin"`

	AuthProvider      string `env:"AUTH_PROVIDER" envDefault:"firebase"` // firebase | jwt | dev
	JWTSigningKey     string `env:"JWT_SIGNING_KEY"`
	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`
	FirebaseCreds     string `env:"FIREBASE_CREDENTIALS_FILE"`
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	db, err := persistence.Open(ctx, persistence.Config{
		ConnString:   cfg.DatabaseURL,
		Driver:       persistence.Kind(cfg.DatabaseDriver),
		HTTPEndpoint: cfg.DatabaseHTTP,
		HTTPTimeout:  cfg.DatabaseHTTPTime,
		Pool: persistence.PoolConfig{
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			MaxConnLifetime: cfg.DBMaxConnLifetime,
			MaxConnIdleTime: cfg.DBMaxConnIdleTime,
		},
	}, logger)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("database ready", zap.String("driver", string(db.Kind())))

	tenantDB := persistence.NewTenantDB(persistence.TenantDBConfig{DB: db, Logger: logger})

	tenantsModule := tenants.New(tenants.Config{
		DB:             db,
		TenantDB:       tenantDB,
		PrivilegedRole: cfg.PrivilegedDBRole,
		Logger:         logger,
	})

	userStore, err := persistence.NewUserStore(tenantDB)
	if err != nil {
		logger.Fatal("init user store", zap.Error(err))
	}
	userService := usersservice.New(usersrepo.NewPostgresRepository(userStore))
	userHTTPHandler := usershandler.New(userService, logger.Named("users"))

	bookingsModule := bookings.New(tenantDB, logger)

	spec, err := contracts.Load(ctx)
	if err != nil {
		logger.Fatal("load openapi contract", zap.Error(err))
	}
	logSecuritySchemes(logger, spec)

	authMiddleware := buildAuthMiddleware(ctx, cfg, logger)

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			platformlogging.FromRequest(r, logger).Warn("readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// ---- Swagger UI + OpenAPI JSON (public) ----
	registerDocsRoutes(rootRouter, logger)

	apiRouter := chi.NewRouter()
	apiRouter.Use(authMiddleware)
	apiRouter.Use(platformmiddleware.RequestTrace)
	apiRouter.Use(platformmiddleware.OpenAPIValidator(spec))

	apiRouter.Group(func(r chi.Router) {
		r.Use(platformauth.RequireRole("admin"))
		r.Route("/platform/tenants", tenantsModule.Handler.Routes)
	})

	apiRouter.Group(func(r chi.Router) {
		r.Use(platformmiddleware.TenantIdentity(tenantsModule, platformmiddleware.Config{
			CacheTTL: cfg.TenantCacheTTL,
		}))
		r.Route("/users", userHTTPHandler.Routes)
		r.Route("/bookings", bookingsModule.Handler.Routes)
	})

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func logSecuritySchemes(logger *zap.Logger, spec *openapi3.T) {
	names := make([]string, 0, len(spec.Components.SecuritySchemes))
	for name := range spec.Components.SecuritySchemes {
		names = append(names, name)
	}
	logger.Info("loaded security schemes", zap.Strings("names", names))
}
