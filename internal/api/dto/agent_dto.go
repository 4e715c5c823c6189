package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// RegisterAgentRequest payload.
type RegisterAgentRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AuthResponse holds token data.
type AuthResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AgentResponse is the public view of an agent.
type AgentResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAgentResponse maps an agent.
func NewAgentResponse(a *domain.Agent) AgentResponse {
	return AgentResponse{ID: a.ID, Name: a.Name, Email: a.Email, CreatedAt: a.CreatedAt}
}
