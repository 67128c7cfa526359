package handler

import (
	"github.com/Kdero/trustx/internal/adapter/http/middleware"
	"github.com/Kdero/trustx/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	PaymentSvc     ports.PaymentService
	AdminAPIKey    string // empty disables the admin routes
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep: verifies PostgreSQL and Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	v1 := r.Group("/api/v1")

	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	payments := v1.Group("/payments")
	{
		payments.POST("", paymentHandler.Create)
		payments.GET("", paymentHandler.List)
		payments.GET("/:payment_id", paymentHandler.GetStatus)
		payments.GET("/:payment_id/transfers", paymentHandler.GetDetail)
	}

	adminAuth := middleware.AdminKeyAuth(deps.AdminAPIKey, deps.Logger)
	adminHandler := NewAdminHandler(deps.PaymentSvc)
	admin := v1.Group("/admin/payments", adminAuth)
	{
		admin.POST("/:payment_id/approve", adminHandler.Approve)
		admin.POST("/:payment_id/reject", adminHandler.Reject)
	}

	return r
}
