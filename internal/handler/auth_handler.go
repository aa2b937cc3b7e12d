package handler

import (
	"errors"
	"net/http"

	"github.com/corrigolabs/corrigo-backend/internal/middleware"
	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/corrigolabs/corrigo-backend/internal/response"
	"github.com/corrigolabs/corrigo-backend/internal/service"
	"github.com/corrigolabs/corrigo-backend/internal/validator"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles professor authentication and account settings.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login godoc
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	token, prof, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"professor": gin.H{
			"id":    prof.ID,
			"email": prof.Email,
			"name":  prof.Name,
		},
	})
}

// GetProfile godoc
// GET /api/v1/professor/me
// The stored API key is never returned, only whether one exists.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	prof, err := h.authService.GetProfile(c.Request.Context(), claims.ProfessorID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"id":             prof.ID,
		"email":          prof.Email,
		"name":           prof.Name,
		"has_openai_key": prof.OpenAIAPIKey != nil && *prof.OpenAIAPIKey != "",
	})
}

// UpdateSettings godoc
// PUT /api/v1/professor/settings
func (h *AuthHandler) UpdateSettings(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.UpdateSettingsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.authService.UpdateAPIKey(c.Request.Context(), claims.ProfessorID, req.OpenAIAPIKey); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": true})
}
