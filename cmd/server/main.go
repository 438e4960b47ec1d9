package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/cache"
	"github.com/Societyforcis/SCIS-Backend/internal/config"
	"github.com/Societyforcis/SCIS-Backend/internal/database"
	"github.com/Societyforcis/SCIS-Backend/internal/identity"
	"github.com/Societyforcis/SCIS-Backend/internal/metrics"
	"github.com/Societyforcis/SCIS-Backend/internal/middleware"
	"github.com/Societyforcis/SCIS-Backend/internal/repositories"
	"github.com/Societyforcis/SCIS-Backend/internal/router"
	"github.com/Societyforcis/SCIS-Backend/internal/services"
	"github.com/Societyforcis/SCIS-Backend/internal/storage"
	"github.com/Societyforcis/SCIS-Backend/internal/telemetry"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

const appName = "Society for Cyber Intelligent Systems"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Logger
	utils.InitLogger(cfg.App.LogLevel, cfg.App.LogPretty)
	utils.SetDevelopmentMode(cfg.App.Development())
	if !cfg.App.Development() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		utils.LogError(err, "Server exited with error")
		log.Fatalf("Server exited with error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.App.Env,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			utils.LogError(err, "Failed to flush traces")
		}
	}()

	// Initialize Database
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.AutoSchema {
		if err := database.ApplySchema(ctx, db); err != nil {
			return err
		}
	}

	reg := metrics.NewDefaultRegistry()

	settingsCache, err := newCache(ctx, cfg, reg)
	if err != nil {
		return err
	}
	defer settingsCache.Close()

	dispatcher := services.NewDispatcher(2 * time.Minute)
	svc, err := buildServices(cfg, db, settingsCache, dispatcher, reg)
	if err != nil {
		return err
	}

	engine := gin.New()
	engine.Use(utils.GinLogger())
	engine.Use(middleware.Recovery())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.App.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	engine.Use(cors.New(corsConfig))

	router.Setup(engine, svc, router.Options{
		ServiceName: cfg.Tracing.ServiceName,
		Metrics:     reg,
		RateLimiter: middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		DB:          db,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		utils.LogInfo("Server starting", map[string]interface{}{"port": cfg.App.Port, "env": cfg.App.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	utils.LogInfo("Shutting down server", map[string]interface{}{"grace": cfg.App.ShutdownGrace.String()})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.LogError(err, "Graceful shutdown failed")
	}

	// Let detached emails finish before the database closes.
	dispatcher.Wait()
	utils.LogInfo("Server stopped")
	return nil
}

// newCache returns the Redis cache when enabled, otherwise an in-process one.
func newCache(ctx context.Context, cfg *config.Config, reg *metrics.Registry) (cache.Cache, error) {
	var c cache.Cache = cache.NewMemory(5*time.Minute, 10*time.Minute)
	if cfg.Redis.Enabled {
		r, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		utils.LogInfo("Using Redis cache", map[string]interface{}{"addr": cfg.Redis.Addr})
		c = r
	}
	return cache.NewInstrumented(c, reg), nil
}

func buildServices(cfg *config.Config, db *sqlx.DB, c cache.Cache, dispatcher *services.Dispatcher, reg *metrics.Registry) (*router.Services, error) {
	var sender services.MailSender
	if cfg.SMTP.Username != "" {
		smtp, err := services.NewSMTPSender(cfg.SMTP)
		if err != nil {
			return nil, err
		}
		sender = smtp
	} else {
		utils.LogWarn("EMAIL_USER is not set; outgoing email will only be logged")
		sender = services.NewLogSender(func(msg services.MailMessage) {
			utils.LogInfo("Email not sent", map[string]interface{}{"to": msg.To, "subject": msg.Subject})
		})
	}
	mail := services.NewMailService(sender, services.MailConfig{AppName: appName, FrontendURL: cfg.App.FrontendURL}, reg)

	var objects services.ObjectStorage
	if cfg.Cloudinary.Enabled() {
		cld, err := storage.NewCloudinary(storage.Config{
			URL:       cfg.Cloudinary.URL,
			CloudName: cfg.Cloudinary.CloudName,
			APIKey:    cfg.Cloudinary.APIKey,
			APISecret: cfg.Cloudinary.APISecret,
		})
		if err != nil {
			return nil, err
		}
		objects = cld
	} else {
		utils.LogWarn("Cloudinary is not configured; image uploads will be rejected")
	}

	var google services.ExternalIdentityVerifier
	if cfg.Google.ClientID != "" {
		v, err := identity.NewGoogleVerifier(cfg.Google.ClientID)
		if err != nil {
			return nil, err
		}
		google = v
	}

	tokens, err := utils.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		return nil, err
	}
	fees, err := config.LoadFeeTable(cfg.FeeTablePath)
	if err != nil {
		return nil, err
	}
	ids := services.NewMembershipIDGenerator()

	accountRepo := repositories.NewAccountRepository(db)
	bookingRepo := repositories.NewBookingRepository(db)
	membershipRepo := repositories.NewMembershipRepository(db)
	verificationRepo := repositories.NewPaymentVerificationRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)
	subscriberRepo := repositories.NewSubscriberRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)
	tx := repositories.NewTxManager(db)

	settings := services.NewSettingsService(settingsRepo, c)

	return &router.Services{
		Auth: services.NewAuthService(accountRepo, tokens, google, objects, mail, dispatcher, reg,
			services.AuthConfig{
				PrimaryAdminEmail:     cfg.Admin.PrimaryEmail,
				AllowUnverifiedGoogle: cfg.App.Development(),
			}),
		Booking:      services.NewBookingService(bookingRepo, membershipRepo, tx, fees, ids, objects, mail, dispatcher, reg),
		Membership:   services.NewMembershipService(membershipRepo, fees, ids, objects, cfg.Bank, reg),
		Payment:      services.NewPaymentService(verificationRepo, membershipRepo, tx, fees, objects, mail, dispatcher, reg),
		Notification: services.NewNotificationService(notificationRepo, accountRepo, settings, mail, dispatcher, reg),
		Settings:     settings,
		Newsletter:   services.NewNewsletterService(subscriberRepo, mail, dispatcher),
		Admin:        services.NewAdminService(accountRepo, membershipRepo, bookingRepo, notificationRepo, subscriberRepo, cfg.Admin.PrimaryEmail),
	}, nil
}
