// AngelaMos | 2026
// manager.go

package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/payroll-ledger/internal/core"
	"github.com/carterperez-dev/payroll-ledger/internal/policy"
)

// Principal is the identity a credential check vouches for.
type Principal struct {
	Username string
	Role     policy.Role
}

type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (Principal, error)
}

type Manager struct {
	tokens      *TokenManager
	revocations RevocationStore
	logger      *slog.Logger
}

func NewManager(
	tokens *TokenManager,
	revocations RevocationStore,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		tokens:      tokens,
		revocations: revocations,
		logger:      logger,
	}
}

// Login verifies credentials through auth and opens a session for the
// resulting principal.
func (m *Manager) Login(
	ctx context.Context,
	auth Authenticator,
	username, password string,
) (*Session, string, error) {
	principal, err := auth.Authenticate(ctx, username, password)
	if err != nil {
		return nil, "", err
	}

	sess, token, err := m.Start(principal.Username, principal.Role)
	if err != nil {
		return nil, "", err
	}

	m.logger.InfoContext(ctx, "session started",
		"username", sess.Username,
		"role", string(sess.Role),
		"session_id", sess.ID,
	)

	return sess, token, nil
}

// Start opens a session for an already authenticated principal.
func (m *Manager) Start(
	username string,
	role policy.Role,
) (*Session, string, error) {
	sess, token, err := m.tokens.Issue(username, role)
	if err != nil {
		return nil, "", fmt.Errorf("start session: %w", err)
	}
	return sess, token, nil
}

// Resolve turns a bearer token back into its session, rejecting sessions
// that were logged out or invalidated for their user.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	sess, err := m.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	revoked, err := m.revocations.IsRevoked(ctx, sess.ID)
	if err != nil {
		return nil, core.StoreError("resolve session", err)
	}
	if revoked {
		return nil, fmt.Errorf("resolve session: %w", core.ErrTokenRevoked)
	}

	cutoff, err := m.revocations.RevokedBefore(ctx, sess.Username)
	if err != nil {
		return nil, core.StoreError("resolve session", err)
	}
	if !cutoff.IsZero() && !sess.IssuedAt.After(cutoff) {
		return nil, fmt.Errorf("resolve session: %w", core.ErrTokenRevoked)
	}

	return sess, nil
}

// Logout ends the session carried by ctx. It is a no-op when ctx carries
// none.
func (m *Manager) Logout(ctx context.Context) error {
	sess := FromContext(ctx)
	if sess == nil {
		return nil
	}

	if err := m.revocations.Revoke(ctx, sess.ID, time.Until(sess.ExpiresAt)); err != nil {
		return core.StoreError("logout", err)
	}

	m.logger.InfoContext(ctx, "session ended",
		"username", sess.Username,
		"session_id", sess.ID,
	)

	return nil
}

// EndAll invalidates every session username currently holds.
func (m *Manager) EndAll(ctx context.Context, username string) error {
	ttl := m.tokens.config.AccessTokenExpire
	if err := m.revocations.RevokeUser(ctx, username, time.Now(), ttl); err != nil {
		return core.StoreError("end all sessions", err)
	}
	return nil
}
