package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"raceday/internal/account"
	"raceday/internal/api"
	"raceday/internal/authz"
	"raceday/internal/config"
	"raceday/internal/credential"
	"raceday/internal/event"
	"raceday/internal/logger"
	"raceday/internal/middleware"
	"raceday/internal/notifications"
	"raceday/internal/payment"
	"raceday/internal/registration"
	"raceday/internal/repository"
	"raceday/internal/storage"
	"raceday/internal/telemetry"
	"raceday/internal/token"
	"raceday/internal/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/postgres/v3"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	log := logger.New(cfg)

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	repo := repository.NewPostgresRepository(db)
	if err := repo.Migrate(); err != nil {
		log.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	sessionStorage := postgres.New(postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Name,
		Username: cfg.Database.User,
		Password: cfg.Database.Password,
		Table:    "sessions",
		Reset:    false,
	})

	store := session.New(session.Config{
		Storage:        sessionStorage,
		KeyLookup:      "cookie:session_id",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   cfg.Server.Environment == config.EnvironmentProduction,
		CookieSameSite: "Lax",
		Expiration:     cfg.Auth.SessionExpiration,
	})

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var objectStorage storage.ObjectStorage
	if cfg.Storage.Enabled {
		s3Storage, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket: cfg.Storage.Bucket,
			Region: cfg.Storage.Region,
		})
		if err != nil {
			log.Error("Failed to initialize object storage", "error", err)
			os.Exit(1)
		}
		objectStorage = s3Storage
	} else {
		log.Warn("Object storage disabled, credentials are kept in memory")
		objectStorage = storage.NewMemoryStorage()
	}

	fga, err := authz.NewClient(cfg.OpenFGA)
	if err != nil {
		log.Error("Failed to initialize authorization client", "error", err)
		os.Exit(1)
	}

	notifier := notifications.NewManager(log, repo, cfg.SMTP)
	authzService := authz.NewService(repo, fga)
	rateLimiter := account.NewRateLimiter(redisClient)
	tokens := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiration)
	credentials := credential.NewIssuer(log, repo, objectStorage, cfg.Auth.CredentialSecret)
	payments := payment.NewClient(log, repo, cfg.Stripe, "eur")

	handler := api.NewHandler(api.HandlerParams{
		Logger:        log,
		Store:         store,
		Repo:          repo,
		Validator:     validator.New(),
		Tokens:        tokens,
		Accounts:      account.NewAuthenticator(log, repo, rateLimiter, notifier),
		Marshals:      account.NewManager(log, repo, authzService, notifier),
		Events:        event.NewManager(log, repo, authzService),
		Registrations: registration.NewManager(log, repo, credentials, notifier),
		Credentials:   credentials,
		Payments:      payments,
		Notifier:      notifier,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.Telemetry.ServiceName,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	if tel.IsEnabled() {
		app.Use(telemetry.FiberMiddleware(cfg.Telemetry.ServiceName))
	}
	app.Use(middleware.Logger())

	// Throttle the credential endpoints; everything else is covered by the
	// Redis limiter inside the authenticator.
	authLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 15 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many attempts. Please try again later.",
			})
		},
	})
	app.Use("/register", authLimiter)
	app.Use("/login", authLimiter)

	app.Use(middleware.SessionAuth(store))
	app.Use(middleware.TokenAuth(tokens))
	app.Use(middleware.AccessGate())

	handler.RegisterRoutes(app)

	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		log.Info("Starting server", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Error("Server stopped", "error", err)
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("Failed to shut down server", "error", err)
	}
}
