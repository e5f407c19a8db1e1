package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/bucket-api/internal/config"
	"github.com/bucket-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/bucket-api/internal/infrastructure/jwt"
	"github.com/bucket-api/internal/infrastructure/memory"
	"github.com/bucket-api/internal/infrastructure/postgres"
	s3infra "github.com/bucket-api/internal/infrastructure/s3"
	"github.com/bucket-api/internal/infrastructure/smtp"
	"github.com/bucket-api/internal/infrastructure/sns"
	"github.com/bucket-api/internal/jobs"
	"github.com/bucket-api/internal/observability/metrics"
	transporthttp "github.com/bucket-api/internal/transport/http"
	appmiddleware "github.com/bucket-api/internal/transport/http/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()
	setupLogger(cfg)

	if err := run(cfg); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	var h slog.Handler
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(h))
}

// backends is the set of stores selected by STORE_DRIVER and OTP_STORE.
type backends struct {
	dynamoClient *dynamodb.Client
	pool         *pgxpool.Pool
	deps         *transporthttp.Deps
	sweeper      jobs.ExpiredOTPPurger
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	if b.pool != nil {
		defer b.pool.Close()
	}

	// JWT provider (optional, sessions are disabled without keys).
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		b.deps.JWTProvider = p
	} else {
		slog.Warn("JWT provider not available, sessions disabled", "err", err)
	}

	b.deps.Mailer = smtp.NewMailer(cfg)

	if cfg.SNSTopicARN != "" {
		if pub, err := sns.NewPublisher(ctx, cfg); err == nil {
			b.deps.Events = pub
		} else {
			slog.Warn("SNS publisher not available, catalog events disabled", "err", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.MustRegister(reg)
	b.deps.Metrics = reg

	limiter := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	b.deps.RateLimiter = limiter
	limiterCtx, stopLimiter := context.WithCancel(ctx)
	defer stopLimiter()
	go limiter.Run(limiterCtx)

	scheduler := jobs.NewScheduler()
	if b.sweeper != nil && cfg.OTPTTL > 0 {
		if err := scheduler.AddOTPSweep(cfg.OTPSweepSchedule, b.sweeper); err != nil {
			return err
		}
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, b.deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreDriver, "otp_store", cfg.OTPStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{deps: &transporthttp.Deps{}}

	needDynamo := cfg.StoreDriver == config.DriverDynamo || cfg.OTPStore == config.DriverDynamo
	needPostgres := cfg.StoreDriver == config.DriverPostgres || cfg.OTPStore == config.DriverPostgres

	if needDynamo {
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		// Creates tables that don't exist yet.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		b.dynamoClient = client
	}
	if needPostgres {
		if cfg.DBAutoMigrate {
			if err := postgres.Migrate("up", cfg.DatabaseURL); err != nil {
				return nil, err
			}
		}
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.pool = pool
	}

	switch cfg.StoreDriver {
	case config.DriverDynamo:
		t := cfg.DynamoTables
		b.deps.UserRepo = dynamo.NewUserRepo(b.dynamoClient, t.Users)
		b.deps.SessionRepo = dynamo.NewSessionRepo(b.dynamoClient, t.Sessions)
		b.deps.ProductRepo = dynamo.NewProductRepo(b.dynamoClient, t.Products)
	case config.DriverPostgres:
		b.deps.UserRepo = postgres.NewUserRepo(b.pool)
		b.deps.SessionRepo = postgres.NewSessionRepo(b.pool)
		b.deps.ProductRepo = postgres.NewProductRepo(b.pool)
	case config.DriverMemory:
		b.deps.UserRepo = memory.NewUserRepo()
		b.deps.SessionRepo = memory.NewSessionRepo()
		b.deps.ProductRepo = memory.NewProductRepo()
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	switch cfg.OTPStore {
	case config.DriverDynamo:
		// Expiry is handled by the table's TTL attribute.
		b.deps.OTPRegistry = dynamo.NewOTPRegistry(b.dynamoClient, cfg.DynamoTables.OTPCodes)
	case config.DriverPostgres:
		reg := postgres.NewOTPRegistry(b.pool)
		b.deps.OTPRegistry = reg
		b.sweeper = reg
	case config.DriverMemory:
		reg := memory.NewOTPRegistry()
		b.deps.OTPRegistry = reg
		b.sweeper = reg
	default:
		return nil, fmt.Errorf("unknown OTP_STORE %q", cfg.OTPStore)
	}

	if cfg.StoreDriver == config.DriverMemory {
		b.deps.Images = memory.NewImageStore()
		return b, nil
	}
	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b.deps.Images = s3infra.NewStore(s3Client, cfg.S3BucketName)
	return b, nil
}
