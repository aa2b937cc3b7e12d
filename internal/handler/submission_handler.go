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

// SubmissionHandler handles the public submission endpoint and the
// professor's submission views.
type SubmissionHandler struct {
	submissionService *service.SubmissionService
	examService       *service.ExamService
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(submissionService *service.SubmissionService, examService *service.ExamService) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: submissionService,
		examService:       examService,
	}
}

// Submit godoc
// POST /api/v1/public/submissions
// Public, addressed by the exam's public token. One submission per email.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req model.SubmitExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sub, err := h.submissionService.Submit(c.Request.Context(), &req)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"submission_id": sub.ID})
}

// GetExamByToken godoc
// GET /api/v1/public/exams/:token
// Returns the published exam's questions for the submission form. No
// rubrics are exposed.
func (h *SubmissionHandler) GetExamByToken(c *gin.Context) {
	exam, questions, err := h.submissionService.GetPublicExam(c.Request.Context(), c.Param("token"))
	if err != nil {
		failDomain(c, err)
		return
	}

	publicQuestions := make([]gin.H, len(questions))
	for i, q := range questions {
		publicQuestions[i] = gin.H{
			"id":         q.ID,
			"order_num":  q.OrderNum,
			"text":       q.Text,
			"max_points": q.MaxPoints,
		}
	}

	response.Success(c, http.StatusOK, gin.H{
		"exam": gin.H{
			"title":       exam.Title,
			"description": exam.Description,
		},
		"questions": publicQuestions,
	})
}

// ListSubmissions godoc
// GET /api/v1/exams/:exam_id/submissions
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
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

	if _, err := h.examService.GetOwned(c.Request.Context(), examID, claims.ProfessorID); err != nil {
		failDomain(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	subs, pagination, err := h.submissionService.ListByExam(c.Request.Context(), examID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"submissions": subs}, pagination)
}

// GetSubmission godoc
// GET /api/v1/submissions/:submission_id
// The correction view: questions, answers and both grade tracks.
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	submissionID, err := uuid.Parse(c.Param("submission_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	detail, err := h.submissionService.GetDetail(c.Request.Context(), submissionID)
	if err != nil {
		failDomain(c, err)
		return
	}

	if _, err := h.examService.GetOwned(c.Request.Context(), detail.Submission.ExamID, claims.ProfessorID); err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"detail": detail})
}
