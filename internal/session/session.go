// AngelaMos | 2026
// session.go

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/carterperez-dev/payroll-ledger/internal/core"
	"github.com/carterperez-dev/payroll-ledger/internal/policy"
)

// Session is the authenticated principal of one calling context.
type Session struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Role      policy.Role `json:"role"`
	IssuedAt  time.Time   `json:"issued_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (s *Session) Can(perm policy.Permission) bool {
	if s == nil {
		return false
	}
	return policy.Check(s.Role, perm)
}

type contextKey struct{}

// WithSession returns a context carrying s. A context holds at most one
// session; attaching another replaces it.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session attached to ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

// Require returns the context's session or ErrUnauthenticated.
func Require(ctx context.Context) (*Session, error) {
	s := FromContext(ctx)
	if s == nil {
		return nil, core.ErrUnauthenticated
	}
	return s, nil
}

// Authorize fails with ErrUnauthenticated when s is nil and with
// ErrPermissionDenied when its role lacks perm.
func Authorize(s *Session, perm policy.Permission) error {
	if s == nil {
		return core.ErrUnauthenticated
	}
	if !s.Can(perm) {
		return fmt.Errorf("%s lacks %s: %w", s.Role, perm, core.ErrPermissionDenied)
	}
	return nil
}
