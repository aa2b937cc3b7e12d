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

// GradingHandler handles manual grading, source selection and finalization.
type GradingHandler struct {
	gradingService  *service.GradingService
	finalizeService *service.FinalizeService
}

// NewGradingHandler creates a new GradingHandler.
func NewGradingHandler(gradingService *service.GradingService, finalizeService *service.FinalizeService) *GradingHandler {
	return &GradingHandler{
		gradingService:  gradingService,
		finalizeService: finalizeService,
	}
}

// SaveDraft godoc
// PUT /api/v1/submissions/:submission_id/grade
// Stores the professor's manual pass. Points are clamped server side; the
// returned total is recomputed from the stored items.
func (h *GradingHandler) SaveDraft(c *gin.Context) {
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

	var req model.SaveDraftRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	total, err := h.gradingService.SaveDraft(c.Request.Context(), claims.ProfessorID, submissionID, &req)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"manual_total_points": total})
}

// SetSource godoc
// PUT /api/v1/submissions/:submission_id/source
func (h *GradingHandler) SetSource(c *gin.Context) {
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

	var req model.SetSourceRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.gradingService.SetDefinitiveSource(c.Request.Context(), claims.ProfessorID, submissionID, req.Source); err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"source": req.Source})
}

// Finalize godoc
// POST /api/v1/exams/:exam_id/finalize
// Locks all draft grades and emails results. Replay-safe per request_id.
func (h *GradingHandler) Finalize(c *gin.Context) {
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

	var req model.FinalizeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	// A missing request ID gets a fresh one; the caller opts into replay
	// safety by supplying its own.
	requestID := uuid.New()
	if req.RequestID != "" {
		requestID, err = uuid.Parse(req.RequestID)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
	}

	result, err := h.finalizeService.Finalize(c.Request.Context(), claims.ProfessorID, examID, requestID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// ClearGrades godoc
// DELETE /api/v1/exams/:exam_id/grades
// Wipes all grading data of a non-evaluated exam.
func (h *GradingHandler) ClearGrades(c *gin.Context) {
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

	if err := h.gradingService.ClearGrades(c.Request.Context(), claims.ProfessorID, examID); err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"cleared": true})
}
