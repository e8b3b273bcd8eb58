// AngelaMos | 2026
// dto.go

package credential

import (
	"time"

	"github.com/carterperez-dev/payroll-ledger/internal/policy"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role"     validate:"omitempty,oneof=admin hr_manager finance_manager department_manager employee"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=8,max=128"`
}

type ResetRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type ConfirmResetRequest struct {
	Token       string `json:"token"        validate:"required,min=32,max=128"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type ActivationRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type UserResponse struct {
	ID             string      `json:"id"`
	Username       string      `json:"username"`
	Email          string      `json:"email"`
	Role           policy.Role `json:"role"`
	IsActive       bool        `json:"is_active"`
	FailedAttempts int         `json:"failed_attempts"`
	LastLogin      *time.Time  `json:"last_login,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

type ListUsersParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
	Role     string `json:"role"`
}

func (p *ListUsersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		Role:           u.Role,
		IsActive:       u.IsActive,
		FailedAttempts: u.FailedAttempts,
		LastLogin:      u.LastLogin,
		CreatedAt:      u.CreatedAt,
	}
}

func ToUserResponseList(users []User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, ToUserResponse(&users[i]))
	}
	return responses
}
