package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/corrigolabs/corrigo-backend/internal/config"
	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/corrigolabs/corrigo-backend/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	ProfessorID int `json:"professor_id"`
}

// AuthService handles professor authentication and JWT issuance.
type AuthService struct {
	cfg           *config.Config
	professorRepo *repository.ProfessorRepository
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, professorRepo *repository.ProfessorRepository) *AuthService {
	return &AuthService{cfg: cfg, professorRepo: professorRepo}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// Login verifies the credentials and returns a signed token plus the
// professor. A missing account and a wrong password are indistinguishable
// to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.Professor, error) {
	prof, err := s.professorRepo.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("get professor: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(prof.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(prof.ID)
	if err != nil {
		return "", nil, err
	}
	return token, prof, nil
}

func (s *AuthService) generateToken(professorID int) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(professorID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		ProfessorID: professorID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// UpdateAPIKey stores or clears the professor's personal model credential.
func (s *AuthService) UpdateAPIKey(ctx context.Context, professorID int, apiKey string) error {
	var key *string
	if apiKey != "" {
		key = &apiKey
	}
	return s.professorRepo.UpdateAPIKey(ctx, professorID, key)
}

// GetProfile returns the professor for the given ID.
func (s *AuthService) GetProfile(ctx context.Context, professorID int) (*model.Professor, error) {
	return s.professorRepo.GetByID(ctx, professorID)
}
