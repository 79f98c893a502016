package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"payos.backend/internal/interfaces/http/handlers"
	"payos.backend/internal/interfaces/http/middleware"
	"payos.backend/pkg/metrics"
)

const (
	serviceName    = "payos-backend"
	serviceVersion = "0.1.0"
)

type routeDeps struct {
	paymentHandler    *handlers.PaymentHandler
	settlementHandler *handlers.SettlementHandler
	webhookHandler    *handlers.WebhookHandler
	adminHandler      *handlers.AdminHandler
	adminAuth         gin.HandlerFunc
	tenantAuth        gin.HandlerFunc
	webhookSignature  gin.HandlerFunc
	// handlerEventSignature guards webhook-mode payment events and rejects
	// unsigned deliveries even when no key is configured.
	handlerEventSignature gin.HandlerFunc
	idempotency           gin.HandlerFunc
}

func newRouter(d routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r)
	registerAPIV1Routes(r, d)
	return r
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key, X-Request-ID, X-Webhook-Signature")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID, Idempotency-Replayed")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
			"version": serviceVersion,
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Payment handler routes
		h := v1.Group("/handlers")
		h.Use(d.tenantAuth)
		{
			h.GET("", d.paymentHandler.ListHandlers)
			h.GET("/select", d.paymentHandler.SelectHandler)
			h.POST("/:handlerId/instruments", d.paymentHandler.AcquireInstrument)
			h.POST("/:handlerId/payments", d.idempotency, d.paymentHandler.ProcessPayment)
			h.GET("/:handlerId/payments/:paymentId", d.paymentHandler.GetPaymentStatus)
			h.POST("/:handlerId/payments/:paymentId/refunds", d.idempotency, d.paymentHandler.RefundPayment)
			h.POST("/:handlerId/payments/:paymentId/capture", d.paymentHandler.CapturePayment)
			h.POST("/:handlerId/payments/:paymentId/void", d.paymentHandler.VoidPayment)
		}

		// Settlement bridge routes
		settlements := v1.Group("/settlements")
		settlements.Use(d.tenantAuth)
		{
			settlements.POST("/quote", d.settlementHandler.Quote)
			settlements.POST("", d.idempotency, d.settlementHandler.Settle)
			settlements.GET("", d.settlementHandler.ListSettlements)
			settlements.GET("/:id", d.settlementHandler.GetSettlement)
			settlements.POST("/:id/confirm-deposit", d.settlementHandler.ConfirmDeposit)
		}

		// Provider webhooks
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/payouts", d.webhookSignature, d.settlementHandler.HandlePayoutWebhook)
			webhooks.POST("/handlers/:handlerId", d.handlerEventSignature, d.webhookHandler.HandlePaymentEvent)
		}

		// Admin routes (protected)
		admin := v1.Group("/admin")
		admin.Use(d.adminAuth)
		{
			admin.POST("/handlers/refresh", d.adminHandler.RefreshHandlers)
		}
	}
}
