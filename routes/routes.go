package routes

import (
	"github.com/danfelbm/astra-sub000/controllers"
	"github.com/danfelbm/astra-sub000/middleware"
	"github.com/danfelbm/astra-sub000/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Authentication
			public.POST("/login", controllers.Login)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "Astra Import API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// User profile
			protected.GET("/profile", controllers.GetProfile)
			protected.PUT("/change-password", controllers.ChangePassword)

			// Bulk imports (admin only)
			imports := protected.Group("/admin/imports")
			imports.Use(middleware.RequireRole(models.RoleAdmin))
			{
				imports.POST("/analyze", controllers.AdminAnalyzeImportFile)
				imports.POST("", controllers.AdminCreateImportJob)
				imports.GET("", controllers.AdminListImportJobs)
				imports.GET("/:id/status", controllers.AdminGetImportStatus)
				imports.GET("/:id/conflicts/:conflict_id", controllers.AdminRefreshImportConflict)
				imports.POST("/:id/conflicts/:conflict_id/resolve", controllers.AdminResolveImportConflict)
			}
		}
	}
}
