package handler

import (
	"net/http"

	"github.com/corrigolabs/corrigo-backend/internal/middleware"
	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/corrigolabs/corrigo-backend/internal/response"
	"github.com/corrigolabs/corrigo-backend/internal/service"
	"github.com/corrigolabs/corrigo-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// JobHandler handles AI grading job endpoints.
type JobHandler struct {
	jobService *service.JobService
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobService *service.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

// Trigger godoc
// POST /api/v1/exams/:exam_id/grading-jobs
// Schedules AI suggestion generation. One active job per exam.
func (h *JobHandler) Trigger(c *gin.Context) {
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

	var req model.CreateGradingJobRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	job, err := h.jobService.Trigger(c.Request.Context(), claims.ProfessorID, examID, &req)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"job": job})
}

// ListJobs godoc
// GET /api/v1/exams/:exam_id/grading-jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
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

	jobs, err := h.jobService.ListByExam(c.Request.Context(), claims.ProfessorID, examID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"jobs": jobs})
}

// GetJob godoc
// GET /api/v1/grading-jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	job, err := h.jobService.GetOwned(c.Request.Context(), jobID, claims.ProfessorID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"job": job})
}
