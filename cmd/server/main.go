package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dfe0990ngc/pcds-student-portal/internal/api"
	"github.com/dfe0990ngc/pcds-student-portal/internal/app"
	iauth "github.com/dfe0990ngc/pcds-student-portal/internal/auth"
	"github.com/dfe0990ngc/pcds-student-portal/internal/database"
	"github.com/dfe0990ngc/pcds-student-portal/internal/ratelimit"
	"github.com/dfe0990ngc/pcds-student-portal/internal/services"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/logger"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("portal-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory")

	if err := fs.Parse(args); err != nil {
		return err
	}

	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	}

	cfg, err := app.LoadConfig(paths...)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	store, redisClient, err := buildRateStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	tokens, err := iauth.NewTokenService(iauth.TokenConfig{
		Secret:          cfg.Auth.JWT.Secret,
		Issuer:          cfg.Auth.JWT.Issuer,
		AccessTokenTTL:  cfg.Auth.JWT.TTL,
		RefreshTokenTTL: cfg.Auth.Refresh.TTL,
	})
	if err != nil {
		return fmt.Errorf("initialise token service: %w", err)
	}

	dispatcher, err := buildMailer(cfg, log)
	if err != nil {
		return err
	}

	router, err := api.NewRouter(api.Deps{
		DB:      db,
		Tokens:  tokens,
		Limiter: ratelimit.NewLimiter(store),
		Mailer:  dispatcher,
		AuthConfig: services.AuthConfig{
			Rules: services.RateRules{
				Register:           ratelimit.Rule{Limit: cfg.RateLimit.Register.Limit, Window: cfg.RateLimit.Register.Window},
				ResendVerification: ratelimit.Rule{Limit: cfg.RateLimit.ResendVerification.Limit, Window: cfg.RateLimit.ResendVerification.Window},
				Login:              ratelimit.Rule{Limit: cfg.RateLimit.Login.Limit, Window: cfg.RateLimit.Login.Window},
			},
			VerificationTTL: cfg.Auth.Verification.TTL,
			ResetTTL:        cfg.Auth.Reset.TTL,
		},
		CORSOrigin:  cfg.Server.CORSOrigin,
		TrustedCIDR: cfg.Server.TrustedProxies,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}

func openDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := database.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN,
	}

	switch cfg.Database.Driver {
	case "mysql":
		dbCfg.Host = cfg.Database.MySQL.Host
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = cfg.Database.MySQL.Database
		dbCfg.User = cfg.Database.MySQL.Username
		dbCfg.Password = cfg.Database.MySQL.Password
	case "postgres", "postgresql":
		dbCfg.Host = cfg.Database.Postgres.Host
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = cfg.Database.Postgres.Database
		dbCfg.User = cfg.Database.Postgres.Username
		dbCfg.Password = cfg.Database.Postgres.Password
	}

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.AutoMigrateAll(db); err != nil {
		return nil, err
	}
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("resolve sql database handle", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("close database", zap.Error(err))
	}
}

// buildRateStore prefers Redis so limits are shared across replicas, falling
// back to the in-process store when Redis is unavailable.
func buildRateStore(ctx context.Context, cfg *app.Config, log *zap.Logger) (ratelimit.Store, *redis.Client, error) {
	if !cfg.Cache.Redis.Enabled {
		return ratelimit.NewMemoryStore(), nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Cache.Redis.Address,
		Username:     cfg.Cache.Redis.Username,
		Password:     cfg.Cache.Redis.Password,
		DB:           cfg.Cache.Redis.DB,
		DialTimeout:  cfg.Cache.Redis.Timeout,
		ReadTimeout:  cfg.Cache.Redis.Timeout,
		WriteTimeout: cfg.Cache.Redis.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable; using in-memory rate limiting", zap.Error(err))
		_ = client.Close()
		return ratelimit.NewMemoryStore(), nil, nil
	}

	store, err := ratelimit.NewRedisStore(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
	return store, client, nil
}

func buildMailer(cfg *app.Config, log *zap.Logger) (*mail.Dispatcher, error) {
	opts := []mail.DispatcherOption{mail.WithPortalURL(cfg.Email.PortalURL)}

	if !cfg.Email.SMTP.Enabled {
		log.Warn("smtp disabled; verification and reset emails will not be delivered")
		return mail.NewDispatcher(mail.NewLogMailer(), opts...), nil
	}

	primary, err := mail.NewSMTPMailer(smtpSettings(cfg.Email.SMTP))
	if err != nil {
		return nil, fmt.Errorf("configure smtp mailer: %w", err)
	}

	if cfg.Email.Fallback.Enabled {
		fallback, err := mail.NewSMTPMailer(smtpSettings(cfg.Email.Fallback))
		if err != nil {
			return nil, fmt.Errorf("configure fallback mailer: %w", err)
		}
		opts = append(opts, mail.WithFallback(fallback))
	}

	return mail.NewDispatcher(primary, opts...), nil
}

func smtpSettings(cfg app.SMTPConfig) mail.SMTPSettings {
	return mail.SMTPSettings{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		FromName: cfg.FromName,
		UseTLS:   cfg.UseTLS,
		Timeout:  cfg.Timeout,
	}
}
