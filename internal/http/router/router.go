package router

import (
	"github.com/gin-gonic/gin"

	"github.com/towlink/dispatch-backend/internal/config"
	"github.com/towlink/dispatch-backend/internal/http/handlers"
	"github.com/towlink/dispatch-backend/internal/http/middleware"
	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/service"
)

// SetupRouter wires middleware, handlers and route groups.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	walletHandler *handlers.WalletHandler,
	debtHandler *handlers.DebtHandler,
	withdrawalHandler *handlers.WithdrawalHandler,
	serviceHandler *handlers.ServiceHandler,
	payrollHandler *handlers.PayrollHandler,
	payoutAccountHandler *handlers.PayoutAccountHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	protectedAuth := api.Group("/auth")
	protectedAuth.Use(middleware.AuthMiddleware(tokenManager))
	{
		protectedAuth.GET("/me", authHandler.Me)
		protectedAuth.GET("/sessions", authHandler.ListSessions)
		protectedAuth.POST("/logout-all", authHandler.LogoutAll)
	}

	api.GET("/ws", wsHandler.Handle)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/wallet", walletHandler.GetWallet)
		protected.GET("/wallet/transactions", walletHandler.ListTransactions)

		protected.GET("/wallet/debts", debtHandler.ListDebts)
		protected.POST("/wallet/debts/repay", debtHandler.Repay)

		withdrawalRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
		protected.POST("/withdrawals", withdrawalRateLimit, withdrawalHandler.CreateWithdrawal)
		protected.GET("/withdrawals", withdrawalHandler.ListWithdrawals)
		protected.GET("/withdrawals/:id", middleware.UUIDValidator("id"), withdrawalHandler.GetWithdrawal)

		protected.POST("/services", serviceHandler.CreateService)
		protected.GET("/services/my", serviceHandler.ListMyServices)
		protected.GET("/services/:id", middleware.UUIDValidator("id"), serviceHandler.GetService)
		protected.POST("/services/:id/accept", middleware.UUIDValidator("id"), serviceHandler.AcceptService)
		protected.POST("/services/:id/complete", middleware.UUIDValidator("id"), serviceHandler.CompleteService)
		protected.POST("/services/:id/cancel", middleware.UUIDValidator("id"), serviceHandler.CancelService)

		protected.PUT("/payout-account", payoutAccountHandler.SubmitAccount)
		protected.GET("/payout-account", payoutAccountHandler.GetAccount)
		protected.POST("/payout-account/documents", payoutAccountHandler.UploadDocument)
		protected.GET("/payout-account/documents", payoutAccountHandler.ListDocuments)

		protected.GET("/notifications", notificationHandler.ListNotifications)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.DELETE("/notifications/:id", middleware.UUIDValidator("id"), notificationHandler.DeleteNotification)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/payroll/run", payrollHandler.RunWindow)
		admin.GET("/payroll/batches", payrollHandler.ListBatches)
		admin.GET("/payroll/batches/:id", middleware.UUIDValidator("id"), payrollHandler.GetBatch)
		admin.GET("/payroll/batches/:id/items", middleware.UUIDValidator("id"), payrollHandler.ListBatchItems)

		admin.GET("/withdrawals/stuck", withdrawalHandler.ListStuck)

		admin.GET("/payout-accounts/pending", payoutAccountHandler.ListPending)
		admin.POST("/payout-accounts/:id/verify", middleware.UUIDValidator("id"), payoutAccountHandler.Verify)
		admin.POST("/payout-accounts/:id/reject", middleware.UUIDValidator("id"), payoutAccountHandler.Reject)
	}

	return r
}
