package router

import (
	"github.com/Societyforcis/SCIS-Backend/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupUserRoutes sets up account, profile and settings routes under /api/user.
func SetupUserRoutes(api *gin.RouterGroup, h *Handlers, guards Guards) {
	userRoutes := api.Group("/user")

	public := userRoutes.Group("")
	public.Use(guards.RateLimit)
	{
		public.POST("/signin", h.Auth.Signin)
		public.POST("/login", h.Auth.Login)
		public.POST("/verify-account-otp", h.Auth.VerifyAccount)
		public.POST("/resend-otp", h.Auth.ResendOTP)
		public.POST("/forgot-password", h.Auth.ForgotPassword)
		public.POST("/verify-otp", h.Auth.VerifyResetOTP)
		public.POST("/reset-password", h.Auth.ResetPassword)
		public.POST("/google/auth", h.Auth.GoogleLogin)
	}

	authed := userRoutes.Group("")
	authed.Use(guards.Auth)
	{
		authed.GET("/verify-token", h.Auth.VerifyToken)
		authed.GET("/profile", h.Auth.GetProfile)
		authed.PUT("/profile", h.Auth.UpdateProfile)
		authed.GET("/settings", h.Settings.GetSettings)
		authed.PUT("/settings", h.Settings.UpdateSettings)
		authed.GET("/notifications", h.Notification.GetUserNotifications)
		authed.PUT("/notifications/:id/read", h.Notification.MarkAsRead)
	}
}

// SetupBookingRoutes sets up the membership application routes.
func SetupBookingRoutes(api *gin.RouterGroup, h *handlers.BookingHandler, guards Guards) {
	bookingRoutes := api.Group("/booking")
	{
		bookingRoutes.POST("/submit", guards.Auth, h.SubmitBooking)
		bookingRoutes.GET("/status", guards.Auth, h.GetBookingStatus)
		bookingRoutes.GET("/status/:email", guards.OptionalAuth, h.GetBookingStatus)
	}

	adminRoutes := bookingRoutes.Group("")
	adminRoutes.Use(guards.Auth, guards.Admin)
	{
		adminRoutes.GET("/all", h.GetBookings)
		adminRoutes.GET("/stats", h.GetBookingStats)
		adminRoutes.GET("/:id", h.GetBookingByID)
		adminRoutes.POST("/:id/approve", h.ApproveBooking)
		adminRoutes.POST("/:id/reject", h.RejectBooking)
	}
}

// SetupMembershipRoutes sets up the membership routes. Card lookups are public.
func SetupMembershipRoutes(api *gin.RouterGroup, h *Handlers, guards Guards) {
	membershipRoutes := api.Group("/membership")
	{
		membershipRoutes.GET("/types", h.Membership.Types)
		membershipRoutes.GET("/id/:id", h.Membership.Lookup)
		membershipRoutes.GET("/id/:id/validate", h.Membership.Validate)
		membershipRoutes.GET("/approval-status", guards.OptionalAuth, h.Membership.ApprovalStatus)
		membershipRoutes.POST("", guards.OptionalAuth, h.Membership.Register)

		membershipRoutes.GET("/current", guards.Auth, h.Membership.Current)
		membershipRoutes.GET("/email/:email", guards.Auth, h.Membership.ByEmail)
		membershipRoutes.POST("/upgrade", guards.Auth, h.Payment.SubmitUpgrade)
	}
}

// SetupPaymentRoutes sets up fee lookups and payment verification routes.
func SetupPaymentRoutes(api *gin.RouterGroup, h *Handlers, guards Guards) {
	paymentRoutes := api.Group("/payment")
	{
		paymentRoutes.GET("/fees", h.Membership.Fees)
		paymentRoutes.GET("/fees/:type", h.Membership.FeeFor)
	}

	verifyRoutes := paymentRoutes.Group("/verify")
	verifyRoutes.Use(guards.Auth)
	{
		verifyRoutes.POST("", h.Payment.SubmitVerification)
		verifyRoutes.POST("/upgrade", h.Payment.SubmitUpgrade)
		verifyRoutes.GET("/membership/:membershipId", h.Payment.StatusByMembership)

		verifyRoutes.GET("/all", guards.Admin, h.Payment.GetVerifications)
		verifyRoutes.GET("/:id", guards.Admin, h.Payment.GetVerificationByID)
		verifyRoutes.POST("/:id/approve", guards.Admin, h.Payment.ApproveVerification)
		verifyRoutes.POST("/:id/reject", guards.Admin, h.Payment.RejectVerification)
	}
}

// SetupNotificationRoutes sets up the in-app notification routes.
func SetupNotificationRoutes(api *gin.RouterGroup, h *handlers.NotificationHandler, guards Guards) {
	notificationRoutes := api.Group("/notifications")
	notificationRoutes.Use(guards.Auth)
	{
		notificationRoutes.GET("/user", h.GetUserNotifications)
		notificationRoutes.GET("/unread-count", h.GetUnreadCount)
		notificationRoutes.PATCH("/:id/read", h.MarkAsRead)
		notificationRoutes.PATCH("/mark-all-read", h.MarkAllAsRead)

		notificationRoutes.POST("", guards.Admin, h.CreateNotification)
		notificationRoutes.GET("/all", guards.Admin, h.GetAllNotifications)
		notificationRoutes.GET("/stats", guards.Admin, h.GetNotificationStats)
		notificationRoutes.DELETE("/:id", guards.Admin, h.DeleteNotification)
	}
}

// SetupNewsletterRoutes sets up the public subscription routes.
func SetupNewsletterRoutes(api *gin.RouterGroup, h *handlers.NewsletterHandler, guards Guards) {
	newsletterRoutes := api.Group("/newsletter")
	newsletterRoutes.Use(guards.RateLimit)
	{
		newsletterRoutes.POST("/subscribe", h.Subscribe)
		newsletterRoutes.POST("/unsubscribe", h.Unsubscribe)
		newsletterRoutes.GET("/unsubscribe", h.Unsubscribe)
	}
}

// SetupAdminRoutes sets up the administration routes. Every route requires an admin.
func SetupAdminRoutes(api *gin.RouterGroup, h *Handlers, guards Guards) {
	adminRoutes := api.Group("/admin")
	adminRoutes.Use(guards.Auth, guards.Admin)
	{
		adminRoutes.GET("/users", h.Admin.GetUsers)
		adminRoutes.GET("/users/:id", h.Admin.GetUserByID)
		adminRoutes.PUT("/users/:id", h.Admin.UpdateUser)
		adminRoutes.DELETE("/users/:id", h.Admin.DeleteUser)

		adminRoutes.GET("/memberships", h.Membership.List)
		adminRoutes.GET("/memberships/:id", h.Membership.Get)
		adminRoutes.PUT("/memberships/:id", h.Membership.Update)
		adminRoutes.DELETE("/memberships/:id", h.Membership.Delete)

		adminRoutes.GET("/newsletter", h.Newsletter.GetSubscribers)
		adminRoutes.GET("/newsletter/:id", h.Newsletter.GetSubscriber)
		adminRoutes.PUT("/newsletter/:id", h.Newsletter.UpdateSubscriber)
		adminRoutes.DELETE("/newsletter/:id", h.Newsletter.DeleteSubscriber)

		adminRoutes.GET("/notifications", h.Notification.GetAllNotifications)
		adminRoutes.DELETE("/notifications/:id", h.Notification.DeleteNotification)
		adminRoutes.POST("/announcements", h.Notification.SendAnnouncement)

		adminRoutes.GET("/stats/users", h.Admin.UserStats)
		adminRoutes.GET("/stats/memberships", h.Membership.Stats)
		adminRoutes.GET("/stats/notifications", h.Notification.GetNotificationStats)
		adminRoutes.GET("/stats/newsletter", h.Newsletter.Stats)
		adminRoutes.GET("/stats/bookings", h.Booking.GetBookingStats)
		adminRoutes.GET("/dashboard", h.Admin.Dashboard)
	}
}
