// AngelaMos | 2026
// dto.go

package session

import (
	"time"

	"github.com/carterperez-dev/payroll-ledger/internal/policy"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type LoginResponse struct {
	Session SessionResponse `json:"session"`
	Tokens  TokenResponse   `json:"tokens"`
}

type SessionResponse struct {
	ID          string              `json:"id"`
	Username    string              `json:"username"`
	Role        policy.Role         `json:"role"`
	Permissions []policy.Permission `json:"permissions"`
	IssuedAt    time.Time           `json:"issued_at"`
	ExpiresAt   time.Time           `json:"expires_at"`
}

func ToSessionResponse(s *Session) SessionResponse {
	return SessionResponse{
		ID:          s.ID,
		Username:    s.Username,
		Role:        s.Role,
		Permissions: policy.PermissionsOf(s.Role),
		IssuedAt:    s.IssuedAt,
		ExpiresAt:   s.ExpiresAt,
	}
}
