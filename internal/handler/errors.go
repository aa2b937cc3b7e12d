package handler

import (
	"errors"
	"net/http"

	"github.com/corrigolabs/corrigo-backend/internal/repository"
	"github.com/corrigolabs/corrigo-backend/internal/response"
	"github.com/corrigolabs/corrigo-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// failDomain translates service-layer errors into the API error envelope.
// Unknown errors become a 500 without leaking detail.
func failDomain(c *gin.Context, err error) {
	switch {
	case repository.IsNotFound(err):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotExamOwner), errors.Is(err, service.ErrNotJobOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotExamOwner)
	case errors.Is(err, service.ErrExamNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrExamNotDraft)
	case errors.Is(err, service.ErrExamNotPublished):
		response.Fail(c, http.StatusConflict, response.ErrExamNotPublished)
	case errors.Is(err, service.ErrExamEvaluated), errors.Is(err, service.ErrGradeLocked):
		response.Fail(c, http.StatusConflict, response.ErrExamEvaluated)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	case errors.Is(err, service.ErrUnknownQuestion):
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
	case errors.Is(err, service.ErrGradeNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrGradeNotFound)
	case errors.Is(err, service.ErrSourceUnavailable):
		response.Fail(c, http.StatusConflict, response.ErrSourceUnavailable)
	case errors.Is(err, service.ErrJobActive), errors.Is(err, service.ErrFinalizeInProgress):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
