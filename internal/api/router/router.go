package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tdhoang/escrow-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		if deps.DBClient != nil {
			if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "escrow-api-service",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "escrow-api-service",
		})
	})

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
			jobs.POST("/:job_id/apply", jobHandler.ApplyForJob)
			jobs.POST("/:job_id/start", jobHandler.StartContract)
			jobs.POST("/:job_id/deliver", jobHandler.DeliverWork)
			jobs.POST("/:job_id/approve", jobHandler.ApproveAndComplete)
			jobs.POST("/:job_id/withdraw", jobHandler.WithdrawPayment)
			jobs.POST("/:job_id/auto-approve", jobHandler.AutoApprove)
			jobs.POST("/:job_id/auto-cancel", jobHandler.AutoCancel)
			jobs.POST("/:job_id/dispute", jobHandler.RaiseDispute)
			jobs.POST("/:job_id/resolve", jobHandler.ResolveDispute)
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)
		}

		settings := v1.Group("/settings")
		{
			settings.PUT("/resolver", jobHandler.SetDisputeResolver)
		}
	}

	return r
}
