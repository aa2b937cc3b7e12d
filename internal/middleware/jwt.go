package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/corrigolabs/corrigo-backend/internal/response"
	"github.com/corrigolabs/corrigo-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// ContextKeyClaims is the gin context key for the authenticated claims.
const ContextKeyClaims = "claims"

var errNoToken = errors.New("no bearer token in request")

// RequireProfessorJWT guards a route behind a valid professor token taken
// from the Authorization header.
func RequireProfessorJWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := claimsFromRequest(c, authService)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireProfessorWSAuth is the WebSocket variant: browsers cannot set
// headers on upgrade requests, so the token arrives as ?token=...
func RequireProfessorWSAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("token")
		if raw == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := authService.ValidateToken(raw)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims returns the claims set by the auth middleware, or nil when
// the route was reached without it.
func GetClaims(c *gin.Context) *service.Claims {
	val, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

func claimsFromRequest(c *gin.Context, authService *service.AuthService) (*service.Claims, error) {
	scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
		return nil, errNoToken
	}
	return authService.ValidateToken(token)
}
