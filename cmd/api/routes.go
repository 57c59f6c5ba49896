package main

import (
	"marketplace-payments/internal/httpapi"
	"marketplace-payments/internal/rbac"
	"marketplace-payments/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, wh *webhook.Handler, authMW gin.HandlerFunc, reg *prometheus.Registry) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Gateway webhook: raw body, signature-verified inside the handler.
	wh.Register(r)

	v1 := r.Group("/v1")

	// Token issuance; the only unauthenticated v1 route.
	v1.POST("/auth/login", h.Login)

	secured := v1.Group("")
	secured.Use(authMW)
	{
		payments := secured.Group("/payments")
		{
			payments.POST("/initiate", rbac.RequireAnyRole(rbac.RoleBuyer), h.InitiatePayment)
			payments.POST("/stripe/confirm", rbac.RequireAnyRole(rbac.RoleBuyer), h.ConfirmStripePayment)
			payments.GET("/order/:order_id", rbac.RequireAnyRole(rbac.RoleBuyer, rbac.RoleAdmin), h.ListOrderPayments)
			payments.POST("/cod/confirm/:order_id", rbac.RequireAnyRole(rbac.RoleAdmin), h.ConfirmCODPayment)
		}

		refunds := secured.Group("/refunds")
		{
			refunds.POST("/process/:order_id", rbac.RequireAnyRole(rbac.RoleAdmin), h.ProcessRefund)
			refunds.POST("/partial/:order_id", rbac.RequireAnyRole(rbac.RoleAdmin), h.ProcessPartialRefund)
			refunds.POST("/cancel/:order_id", rbac.RequireAnyRole(rbac.RoleAdmin), h.CancelCODOrder)
			refunds.GET("/status/:order_id", rbac.RequireAnyRole(rbac.RoleBuyer, rbac.RoleAdmin), h.RefundStatus)
		}

		walletGroup := secured.Group("/wallet")
		walletGroup.Use(rbac.RequireAuthenticated())
		{
			walletGroup.GET("/balance", h.WalletBalance)
			walletGroup.GET("/transactions", h.WalletTransactions)
			walletGroup.GET("/statement", h.WalletStatement)
			walletGroup.POST("/topup", rbac.RequireAnyRole(rbac.RoleBuyer, rbac.RoleSeller), h.WalletTopup)
			walletGroup.POST("/withdraw", rbac.RequireAnyRole(rbac.RoleSeller), h.WalletWithdraw)
		}

		payouts := secured.Group("/payouts")
		{
			payouts.GET("", rbac.RequireAnyRole(rbac.RoleSeller, rbac.RoleFinanceOps), h.ListPayouts)
			payouts.GET("/pending", rbac.RequireAnyRole(rbac.RoleSeller, rbac.RoleFinanceOps), h.PendingPayout)
			payouts.POST("/initiate", rbac.RequireAnyRole(rbac.RoleSeller, rbac.RoleFinanceOps), h.InitiatePayout)
			payouts.POST("/:payout_id/process", rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleFinanceOps), h.ProcessPayout)
			payouts.POST("/:payout_id/complete", rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleFinanceOps), h.CompletePayout)
			payouts.POST("/:payout_id/fail", rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleFinanceOps), h.FailPayout)
		}

		admin := secured.Group("/admin")
		{
			admin.POST("/wallets/manual-credit", rbac.RequireAnyRole(rbac.RoleAdmin), h.AdminManualCredit)
			admin.GET("/reports/payments", rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleFinanceOps), h.AdminPaymentsReport)
		}
	}
}
