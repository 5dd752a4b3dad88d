package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"consultly/handlers"
	"consultly/middleware"
	"consultly/models"
)

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", handlers.HealthHandler)
}

// RegisterConsultationRoutes sets up the booking lifecycle endpoints.
func RegisterConsultationRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	h := hb.Consultations
	api := r.Group("/api")
	api.Use(middleware.JWTAuthMiddleware())
	{
		api.POST("/pricing/quote", middleware.RequireRoles(models.RoleClient), h.QuoteHandler)
		api.POST("/payments/:intentId/confirm", h.ConfirmPaymentHandler)

		consultations := api.Group("/consultations")
		consultations.POST("", middleware.RequireRoles(models.RoleClient), h.BookHandler)
		consultations.GET("", h.ListHandler)
		consultations.GET("/:id", h.GetHandler)
		consultations.POST("/:id/payment", middleware.RequireRoles(models.RoleClient), h.InitiatePaymentHandler)
		consultations.POST("/:id/cancel", h.CancelHandler)
		consultations.POST("/:id/complete", middleware.RequireRoles(models.RoleConsultant), h.CompleteHandler)
		consultations.POST("/:id/reschedule", h.RescheduleHandler)
		consultations.POST("/:id/no-show", middleware.RequireRoles(models.RoleAdmin), h.NoShowHandler)
		consultations.PUT("/:id/notes", middleware.RequireRoles(models.RoleConsultant), h.UpdateNotesHandler)
		consultations.POST("/:id/feedback", middleware.RequireRoles(models.RoleClient), h.FeedbackHandler)

		admin := api.Group("/admin")
		admin.Use(middleware.RequireRoles(models.RoleAdmin))
		admin.POST("/consultations/:id/refund/retry", h.RetryRefundHandler)
	}
}

// RegisterWebhookRoutes mounts processor callbacks. They authenticate by signature, not JWT.
func RegisterWebhookRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.POST("/api/webhooks/stripe", hb.Webhooks.StripeWebhookHandler)
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, allowedOrigins []string) {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r)
	RegisterWebhookRoutes(r, hb)
	RegisterConsultationRoutes(r, hb)
}
