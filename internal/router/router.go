package router

import (
	"net/http"
	"time"

	"github.com/corrigolabs/corrigo-backend/internal/config"
	"github.com/corrigolabs/corrigo-backend/internal/handler"
	"github.com/corrigolabs/corrigo-backend/internal/middleware"
	"github.com/corrigolabs/corrigo-backend/internal/response"
	"github.com/corrigolabs/corrigo-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Exam       *handler.ExamHandler
	Submission *handler.SubmissionHandler
	Grading    *handler.GradingHandler
	Job        *handler.JobHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set, restrict to that list; otherwise allow
	// all so dev works without extra config.
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

	// Request IDs so every response carries metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Public Group (No Auth, Rate Limited) ───────────────────────
	publicLimiter := middleware.NewRateLimiter(30, time.Minute)
	publicAPI := router.Group("/api/v1/public")
	publicAPI.Use(publicLimiter.Middleware())
	{
		publicAPI.GET("/exams/:token", handlers.Submission.GetExamByToken)
		publicAPI.POST("/submissions", handlers.Submission.Submit)
	}

	// ─── 2. Auth Group (Public, Rate Limited) ──────────────────────────
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
	}

	// ─── 3. Professor API (JWT) ────────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireProfessorJWT(authService))
	{
		api.GET("/professor/me", handlers.Auth.GetProfile)
		api.PUT("/professor/settings", handlers.Auth.UpdateSettings)

		api.GET("/exams", handlers.Exam.ListExams)
		api.POST("/exams", handlers.Exam.CreateExam)
		api.GET("/exams/:exam_id", handlers.Exam.GetExam)
		api.POST("/exams/:exam_id/publish", handlers.Exam.PublishExam)
		api.GET("/exams/:exam_id/stats", handlers.Exam.ComparisonStats)

		api.GET("/exams/:exam_id/submissions", handlers.Submission.ListSubmissions)
		api.GET("/submissions/:submission_id", handlers.Submission.GetSubmission)

		api.PUT("/submissions/:submission_id/grade", handlers.Grading.SaveDraft)
		api.PUT("/submissions/:submission_id/source", handlers.Grading.SetSource)
		api.POST("/exams/:exam_id/finalize", handlers.Grading.Finalize)
		api.DELETE("/exams/:exam_id/grades", handlers.Grading.ClearGrades)

		api.POST("/exams/:exam_id/grading-jobs", handlers.Job.Trigger)
		api.GET("/exams/:exam_id/grading-jobs", handlers.Job.ListJobs)
		api.GET("/grading-jobs/:job_id", handlers.Job.GetJob)
	}

	// ─── 4. WebSocket (JWT via query param) ────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireProfessorWSAuth(authService))
	{
		ws.GET("/jobs", handlers.WS.JobEventStream)
	}

	return router
}
