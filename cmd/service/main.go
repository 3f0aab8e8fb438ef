package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/consentgate/internal/cache"
	"github.com/dropDatabas3/consentgate/internal/config"
	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/http/middlewares"
	"github.com/dropDatabas3/consentgate/internal/http/router"
	"github.com/dropDatabas3/consentgate/internal/http/services"
	"github.com/dropDatabas3/consentgate/internal/metrics"
	"github.com/dropDatabas3/consentgate/internal/observability/logger"
	"github.com/dropDatabas3/consentgate/internal/security/secretbox"
	"github.com/dropDatabas3/consentgate/internal/session"
	"github.com/dropDatabas3/consentgate/internal/store"
	"github.com/dropDatabas3/consentgate/internal/trust"
)

func main() {
	// .env si existe; sin .env seguimos con el entorno del sistema.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfgPath := flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "path al config YAML")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "consentgate",
	})
	lg := logger.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Grant store
	grants, err := store.New(ctx, store.Config{
		Driver: cfg.Storage.Driver,
		DSN:    cfg.Storage.DSN,
		FSRoot: cfg.Storage.FSRoot,
	})
	if err != nil {
		lg.Fatal("store init failed", logger.Err(err), logger.Driver(cfg.Storage.Driver))
	}
	defer func() { _ = grants.Close() }()

	// Cache de sesiones
	cacheCli, err := cache.New(cache.Config{
		Driver:     cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: config.Dur(cfg.Cache.Memory.DefaultTTL),
	})
	if err != nil {
		lg.Fatal("cache init failed", logger.Err(err), logger.Driver(cfg.Cache.Kind))
	}
	defer func() { _ = cacheCli.Close() }()

	// Políticas de confianza por client (YAML, recarga con TTL)
	var trustSrc repository.TrustPolicySource
	if cfg.Trust.ClientsFile != "" {
		fileSrc, err := trust.NewFileSource(trust.Config{
			ClientsFile: cfg.Trust.ClientsFile,
			TTL:         config.Dur(cfg.Trust.ReloadTTL),
		})
		if err != nil {
			lg.Fatal("trust source init failed", logger.Err(err))
		}
		trustSrc = fileSrc
	} else {
		lg.Warn("no trust clients file configured, all clients get the zero policy")
		trustSrc = trust.StaticSource{}
	}

	// Sealing opcional de sesiones en cache
	var box *secretbox.Box
	if cfg.Security.SecretBoxKey != "" {
		box, err = secretbox.New(cfg.Security.SecretBoxKey)
		if err != nil {
			lg.Fatal("secretbox init failed", logger.Err(err))
		}
	}

	tracker := session.NewTracker(session.TrackerDeps{
		Cache: cacheCli,
		Box:   box,
		TTL:   config.Dur(cfg.Interaction.TTL),
	})

	svcs := services.New(services.Deps{
		Grants:  grants,
		Trust:   trustSrc,
		Tracker: tracker,
		Cache:   cacheCli,
	})

	serviceAuth, err := middlewares.RequireServiceToken(middlewares.ServiceAuthConfig{
		PublicKey: cfg.Auth.JWTPublicKey,
		Issuer:    cfg.Auth.Issuer,
	})
	if err != nil {
		lg.Fatal("service auth init failed", logger.Err(err))
	}

	metrics.RegisterHTTP(prometheus.DefaultRegisterer)
	handler := router.New(router.Deps{
		Services:    svcs,
		ServiceAuth: serviceAuth,
		AdminAuth:   middlewares.RequireAdminAPIKey(cfg.Auth.AdminAPIKeyHash),
		Metrics:     metrics.Register(prometheus.DefaultRegisterer),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  config.Dur(cfg.Server.ReadTimeout),
		WriteTimeout: config.Dur(cfg.Server.WriteTimeout),
	}

	go func() {
		lg.Info("server listening",
			logger.String("addr", cfg.Server.Addr),
			logger.Driver(cfg.Storage.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server failed", logger.Err(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Dur(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("graceful shutdown failed", logger.Err(err))
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
