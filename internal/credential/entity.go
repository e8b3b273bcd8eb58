// AngelaMos | 2026
// entity.go

package credential

import (
	"time"

	"github.com/carterperez-dev/payroll-ledger/internal/policy"
)

type User struct {
	ID               string      `db:"id"`
	Username         string      `db:"username"`
	Email            string      `db:"email"`
	PasswordHash     string      `db:"password_hash"`
	Role             policy.Role `db:"role"`
	IsActive         bool        `db:"is_active"`
	FailedAttempts   int         `db:"failed_attempts"`
	LastLogin        *time.Time  `db:"last_login"`
	ResetTokenHash   *string     `db:"reset_token_hash"`
	ResetTokenExpiry *time.Time  `db:"reset_token_expiry"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
}

// IsLocked reports whether the failed-attempt counter has reached threshold.
func (u *User) IsLocked(threshold int) bool {
	return u.FailedAttempts >= threshold
}

// ResetTokenExpired treats the expiry instant itself as still valid.
func (u *User) ResetTokenExpired(now time.Time) bool {
	return u.ResetTokenExpiry == nil || now.After(*u.ResetTokenExpiry)
}
