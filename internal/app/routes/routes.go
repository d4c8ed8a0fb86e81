package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yigit/admissions/internal/app/controllers"
	"github.com/yigit/admissions/internal/app/models"
	"github.com/yigit/admissions/internal/middleware"
	"github.com/yigit/admissions/internal/pkg/ratelimit"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	applicationController *controllers.ApplicationController,
	jobController *controllers.JobController,
	authMiddleware *middleware.AuthMiddleware,
	limiter ratelimit.Limiter,
) {
	v1 := router.Group("/api/v1")

	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())

	// Writes share one per-user budget
	limited := middleware.RateLimit(limiter)

	applications := authenticated.Group("/applications")
	{
		applications.GET("", applicationController.ListApplications)
		applications.GET("/:id", applicationController.GetApplication)

		students := applications.Group("")
		students.Use(authMiddleware.RoleRequired(models.RoleStudent))
		{
			students.POST("", limited, applicationController.SubmitApplication)
			students.GET("/admissions", applicationController.GetAdmissions)
			students.POST("/select-institution", limited, applicationController.SelectInstitution)
		}

		institutions := applications.Group("")
		institutions.Use(authMiddleware.RoleRequired(models.RoleInstitute, models.RoleAdmin))
		{
			institutions.PUT("/:id/status", limited, applicationController.UpdateStatus)
			institutions.POST("/publish", limited, applicationController.PublishAdmissions)
			institutions.POST("/waiting-list/promote", limited, applicationController.PromoteFromWaitingList)
			institutions.GET("/waiting-list/count", applicationController.CountWaitingList)
		}
	}

	jobs := authenticated.Group("/jobs")
	{
		jobs.GET("", authMiddleware.RoleRequired(models.RoleStudent, models.RoleCompany, models.RoleAdmin), jobController.ListJobs)
		jobs.GET("/:id/candidates", authMiddleware.RoleRequired(models.RoleCompany, models.RoleAdmin), jobController.GetCandidates)
		jobs.PUT("/:id/requirements", authMiddleware.RoleRequired(models.RoleCompany), limited, jobController.UpdateRequirements)
		jobs.POST("/:id/apply", authMiddleware.RoleRequired(models.RoleStudent), limited, jobController.Apply)
	}
}
