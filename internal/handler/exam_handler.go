package handler

import (
	"net/http"
	"strconv"

	"github.com/corrigolabs/corrigo-backend/internal/middleware"
	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/corrigolabs/corrigo-backend/internal/response"
	"github.com/corrigolabs/corrigo-backend/internal/service"
	"github.com/corrigolabs/corrigo-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ExamHandler handles exam management endpoints.
type ExamHandler struct {
	examService  *service.ExamService
	statsService *service.StatsService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, statsService *service.StatsService) *ExamHandler {
	return &ExamHandler{examService: examService, statsService: statsService}
}

// ListExams godoc
// GET /api/v1/exams
func (h *ExamHandler) ListExams(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	exams, pagination, err := h.examService.List(c.Request.Context(), claims.ProfessorID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// CreateExam godoc
// POST /api/v1/exams
// Creates a new DRAFT exam with its questions.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), claims.ProfessorID, &req)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/exams/:exam_id
// Returns the exam with its questions.
func (h *ExamHandler) GetExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.GetOwned(c.Request.Context(), examID, claims.ProfessorID)
	if err != nil {
		failDomain(c, err)
		return
	}

	questions, err := h.examService.Questions(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam, "questions": questions})
}

// PublishExam godoc
// POST /api/v1/exams/:exam_id/publish
func (h *ExamHandler) PublishExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.Publish(c.Request.Context(), examID, claims.ProfessorID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// ComparisonStats godoc
// GET /api/v1/exams/:exam_id/stats
// Contrasts manual and AI scores over the exam's submissions.
func (h *ExamHandler) ComparisonStats(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	stats, err := h.statsService.Comparison(c.Request.Context(), claims.ProfessorID, examID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}
