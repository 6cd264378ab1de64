package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vnkhanh/siquiz-backend/controllers"
	"github.com/vnkhanh/siquiz-backend/middleware"
	"github.com/vnkhanh/siquiz-backend/models"
	"github.com/vnkhanh/siquiz-backend/services"
	"github.com/vnkhanh/siquiz-backend/ws"
	"gorm.io/gorm"
)

func SetupRouter(r *gin.Engine, db *gorm.DB, svc *services.Container) *gin.Engine {
	r.Use(middleware.Metrics(), middleware.DBMiddleware(db), middleware.ServicesMiddleware(svc))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/health", controllers.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRequired := middleware.AuthMiddleware(db)
	optionalAuth := middleware.OptionalAuthMiddleware()
	authorOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleCreator)

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", controllers.Register)
		auth.POST("/login", controllers.Login)
		auth.POST("/logingoogle", controllers.GoogleLogin)
		auth.PUT("/password", authRequired, controllers.ChangePassword)
	}

	profile := api.Group("/profile", authRequired)
	{
		profile.GET("", controllers.GetProfile)
		profile.PATCH("", controllers.UpdateProfile)
		profile.POST("/avatar", controllers.UploadAvatar)
		profile.GET("/stats", controllers.GetProfileStats)
	}

	// Taxonomy công khai
	api.GET("/categories", controllers.GetActiveCategories)
	api.GET("/categories/:id", controllers.GetCategoryDetail)
	api.GET("/tags", controllers.GetTags)

	quiz := api.Group("/quiz")
	{
		quiz.GET("", optionalAuth, controllers.ListQuizzes)
		quiz.GET("/:id", optionalAuth, controllers.GetQuiz)
		quiz.GET("/:id/take", controllers.TakeQuiz)

		quiz.POST("/:id/start", authRequired, controllers.StartAttempt)
		quiz.GET("/:id/attempts", authRequired, controllers.ListQuizAttempts)

		quiz.POST("", authRequired, authorOnly, controllers.CreateQuiz)
		quiz.PATCH("/:id", authRequired, authorOnly, controllers.UpdateQuiz)
		quiz.DELETE("/:id", authRequired, authorOnly, controllers.DeleteQuiz)
		quiz.PATCH("/:id/status", authRequired, authorOnly, controllers.UpdateQuizStatus)
		quiz.POST("/:id/cover", authRequired, authorOnly, controllers.UploadQuizCover)
		quiz.POST("/:id/questions", authRequired, authorOnly, controllers.AddQuestions)
		quiz.GET("/:id/stats", authRequired, authorOnly, controllers.GetQuizStats)
		quiz.GET("/:id/export", authRequired, authorOnly, controllers.ExportQuizAttempts)

		// Sinh câu hỏi bằng AI
		quiz.POST("/:id/generate", authRequired, authorOnly, controllers.GenerateFromTopic)
		quiz.POST("/:id/generate/document", authRequired, authorOnly, controllers.GenerateFromDocument)
	}

	question := api.Group("/question", authRequired, authorOnly)
	{
		question.PUT("/:questionId", controllers.UpdateQuestion)
		question.DELETE("/:questionId", controllers.DeleteQuestion)
	}

	attempt := api.Group("/attempt", authRequired)
	{
		attempt.GET("/:attemptId", controllers.GetAttempt)
		attempt.PUT("/:attemptId/answers", controllers.SaveAnswers)
		attempt.POST("/:attemptId/submit", controllers.SubmitAttempt)
		attempt.POST("/:attemptId/abandon", controllers.AbandonAttempt)
	}
	api.GET("/attempts", authRequired, controllers.ListMyAttempts)

	admin := api.Group("/admin", authRequired, middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/dashboard", controllers.GetDashboardOverview)

		// Quản lý người dùng
		admin.GET("/users", controllers.ListUsers)
		admin.POST("/users/creators", controllers.AdminCreateCreator)
		admin.PATCH("/users/:id/status", controllers.UpdateUserStatus)
		admin.PATCH("/users/:id/role", controllers.UpdateUserRole)

		// Quản lý danh mục
		admin.GET("/categories", controllers.GetCategoriesAdmin)
		admin.POST("/categories", controllers.CreateCategory)
		admin.GET("/categories/:id", controllers.GetCategoryDetail)
		admin.PUT("/categories/:id", controllers.UpdateCategory)
		admin.DELETE("/categories/:id", controllers.DeleteCategory)
		admin.PATCH("/categories/:id/toggle-status", controllers.ToggleCategoryStatus)

		// Quản lý tags
		admin.GET("/tags", controllers.GetTags)
		admin.POST("/tags", controllers.CreateTag)
		admin.PUT("/tags/:id", controllers.UpdateTag)
		admin.DELETE("/tags/:id", controllers.DeleteTag)

		admin.GET("/quizzes/:id/attempts/export", controllers.ExportQuizAttempts)
	}

	wsGroup := r.Group("/ws")
	{
		wsGroup.GET("/attempt/:attemptId", ws.HandleAttemptWebSocket)
		wsGroup.GET("/admin", ws.HandleAdminWebSocket)
	}

	return r
}
