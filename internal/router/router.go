package router

import (
	"net/http"

	"github.com/Societyforcis/SCIS-Backend/internal/handlers"
	"github.com/Societyforcis/SCIS-Backend/internal/metrics"
	"github.com/Societyforcis/SCIS-Backend/internal/middleware"
	"github.com/Societyforcis/SCIS-Backend/internal/services"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Services is the set of domain services the HTTP layer exposes.
type Services struct {
	Auth         services.AuthService
	Booking      services.BookingService
	Membership   services.MembershipService
	Payment      services.PaymentService
	Notification services.NotificationService
	Settings     services.SettingsService
	Newsletter   services.NewsletterService
	Admin        services.AdminService
}

// Options configures the cross-cutting middleware.
type Options struct {
	ServiceName string
	Metrics     *metrics.Registry
	RateLimiter *middleware.RateLimiter
	DB          handlers.Pinger
}

// Handlers groups the HTTP handlers built from Services.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Booking      *handlers.BookingHandler
	Membership   *handlers.MembershipHandler
	Payment      *handlers.PaymentHandler
	Notification *handlers.NotificationHandler
	Settings     *handlers.SettingsHandler
	Newsletter   *handlers.NewsletterHandler
	Admin        *handlers.AdminHandler
	Health       *handlers.HealthHandler
}

// Guards are the access-control middlewares shared by the route groups.
type Guards struct {
	Auth         gin.HandlerFunc
	OptionalAuth gin.HandlerFunc
	Admin        gin.HandlerFunc
	RateLimit    gin.HandlerFunc
}

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, svc *Services, opts Options) {
	if opts.ServiceName == "" {
		opts.ServiceName = "scis-backend"
	}

	engine.Use(middleware.RequestID())
	engine.Use(otelgin.Middleware(opts.ServiceName))
	if opts.Metrics != nil {
		engine.Use(middleware.Metrics(opts.Metrics))
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Metrics.Gatherer, promhttp.HandlerOpts{})))
	}

	h := &Handlers{
		Auth:         handlers.NewAuthHandler(svc.Auth),
		Booking:      handlers.NewBookingHandler(svc.Booking),
		Membership:   handlers.NewMembershipHandler(svc.Membership),
		Payment:      handlers.NewPaymentHandler(svc.Payment),
		Notification: handlers.NewNotificationHandler(svc.Notification),
		Settings:     handlers.NewSettingsHandler(svc.Settings),
		Newsletter:   handlers.NewNewsletterHandler(svc.Newsletter),
		Admin:        handlers.NewAdminHandler(svc.Admin),
		Health:       handlers.NewHealthHandler(opts.DB),
	}

	guards := Guards{
		Auth:         middleware.AuthMiddleware(svc.Auth),
		OptionalAuth: middleware.OptionalAuth(svc.Auth),
		Admin:        middleware.RequireAdmin(),
		RateLimit:    func(c *gin.Context) { c.Next() },
	}
	if opts.RateLimiter != nil {
		guards.RateLimit = opts.RateLimiter.Middleware()
	}

	api := engine.Group("/api")
	api.GET("/health", h.Health.Health)

	SetupUserRoutes(api, h, guards)
	SetupBookingRoutes(api, h.Booking, guards)
	SetupMembershipRoutes(api, h, guards)
	SetupPaymentRoutes(api, h, guards)
	SetupNotificationRoutes(api, h.Notification, guards)
	SetupNewsletterRoutes(api, h.Newsletter, guards)
	SetupAdminRoutes(api, h, guards)

	engine.NoRoute(func(c *gin.Context) {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound,
			"Route "+c.Request.Method+" "+c.Request.URL.Path+" not found", ""))
	})
}
