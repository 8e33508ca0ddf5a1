package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/provigil/proctor-backend/internal/config"
	"github.com/provigil/proctor-backend/internal/downstream"
	"github.com/provigil/proctor-backend/internal/handler"
	"github.com/provigil/proctor-backend/internal/middleware"
	"github.com/provigil/proctor-backend/internal/response"
	"github.com/provigil/proctor-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Exam      *handler.ExamHandler
	Attempt   *handler.AttemptHandler
	Allowance *handler.AllowanceHandler
	Review    *handler.ReviewHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	instructor downstream.InstructorService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for the unauthenticated surface (30 requests per minute per IP).
	publicLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", publicLimiter.Middleware(), handlers.Auth.Login)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.Me)
		auth.POST("/logout", middleware.RequireJWT(authService), handlers.Auth.Logout)
	}

	// ─── 2. Vendor Callback Group (Server-to-Server) ───────────────────
	callback := router.Group("/api/v1/callback")
	callback.Use(publicLimiter.Middleware())
	{
		callback.POST("/reviews/:attemptCode", handlers.Review.ReviewCallback)
		callback.GET("/attempts/:attemptCode/start", handlers.Attempt.VendorStartPing)
	}

	// ─── 3. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/exams/:examID", handlers.Attempt.GetStudentView)
		studentAPI.POST("/exams/:examID/attempt", handlers.Attempt.CreateAttempt)
		studentAPI.POST("/exams/:examID/attempt/start", handlers.Attempt.StartAttempt)
		studentAPI.POST("/exams/:examID/attempt/stop", handlers.Attempt.StopAttempt)
		studentAPI.PUT("/exams/:examID/attempt/status", handlers.Attempt.UpdateStudentStatus)
		studentAPI.POST("/exams/:examID/attempt/acknowledge", handlers.Attempt.AcknowledgeStatus)
	}

	// ─── 4. Staff Group (JWT) ──────────────────────────────────────────
	staffAPI := router.Group("/api/v1/staff")
	staffAPI.Use(middleware.RequireStaffJWT(authService))
	{
		staffAPI.POST("/exams", handlers.Exam.CreateExam)
		staffAPI.GET("/exams/:examID", handlers.Exam.GetExam)
		staffAPI.PATCH("/exams/:examID", handlers.Exam.UpdateExam)

		staffAPI.PUT("/exams/:examID/allowances", handlers.Allowance.AddAllowance)
		staffAPI.GET("/exams/:examID/allowances/:userID", handlers.Allowance.ListUserAllowances)
		staffAPI.DELETE("/exams/:examID/allowances/:userID/:key", handlers.Allowance.RemoveAllowance)

		staffAPI.GET("/attempts/:attemptID", handlers.Attempt.GetAttempt)
		staffAPI.GET("/attempts/:attemptID/history", handlers.Attempt.GetAttemptHistory)
		staffAPI.PUT("/attempts/:attemptID/status", handlers.Attempt.UpdateAttemptStatus)
		staffAPI.DELETE("/attempts/:attemptID", handlers.Attempt.DeleteAttempt)

		staffAPI.GET("/reviews/:attemptCode", handlers.Review.GetReview)
		staffAPI.PUT("/reviews/:attemptCode", handlers.Review.SaveReview)

		staffAPI.POST("/sessions/:userID/reset", handlers.Auth.ResetSession)

		// Course-scoped reads additionally require staff membership on the
		// course, answered by the platform's instructor service.
		courses := staffAPI.Group("/courses/:courseID")
		courses.Use(middleware.RequireCourseStaff(instructor, log))
		{
			courses.GET("/exams", handlers.Exam.ListCourseExams)
			courses.GET("/attempts", handlers.Attempt.ListCourseAttempts)
			courses.GET("/allowances", handlers.Allowance.ListCourseAllowances)
		}
	}

	return router
}
