package model

import "time"

// Professor represents an exam-owning teacher account.
type Professor struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	// OpenAIAPIKey is the professor's personal model credential. Never
	// serialized; the settings endpoint only reports whether one is set.
	OpenAIAPIKey *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LoginRequest is the payload for professor login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// UpdateSettingsRequest updates a professor's stored model credential.
// An empty key clears it.
type UpdateSettingsRequest struct {
	OpenAIAPIKey string `json:"openai_api_key" binding:"omitempty,max=200"`
}
