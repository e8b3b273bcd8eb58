// AngelaMos | 2026
// service.go

package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/payroll-ledger/internal/core"
	"github.com/carterperez-dev/payroll-ledger/internal/metrics"
	"github.com/carterperez-dev/payroll-ledger/internal/notify"
	"github.com/carterperez-dev/payroll-ledger/internal/policy"
	"github.com/carterperez-dev/payroll-ledger/internal/session"
)

const (
	defaultLockoutThreshold = 3
	defaultResetTokenTTL    = time.Hour
	defaultResetTokenLength = 32
)

// SessionEnder invalidates every live session of a user.
type SessionEnder interface {
	EndAll(ctx context.Context, username string) error
}

type Service struct {
	store    Store
	notifier notify.Notifier
	sessions SessionEnder
	logger   *slog.Logger

	lockoutThreshold int
	resetTokenTTL    time.Duration
	resetTokenLength int
	generateToken    func(length int) (string, error)
	now              func() time.Time
}

type Option func(*Service)

func WithLockoutThreshold(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.lockoutThreshold = n
		}
	}
}

func WithResetTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTokenTTL = ttl
		}
	}
}

func WithResetTokenLength(n int) Option {
	return func(s *Service) {
		if n >= defaultResetTokenLength {
			s.resetTokenLength = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithTokenGenerator replaces the reset token source.
func WithTokenGenerator(gen func(length int) (string, error)) Option {
	return func(s *Service) {
		s.generateToken = gen
	}
}

func NewService(
	store Store,
	notifier notify.Notifier,
	sessions SessionEnder,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		store:            store,
		notifier:         notifier,
		sessions:         sessions,
		logger:           logger,
		lockoutThreshold: defaultLockoutThreshold,
		resetTokenTTL:    defaultResetTokenTTL,
		resetTokenLength: defaultResetTokenLength,
		generateToken:    core.GenerateResetToken,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate decides a login attempt in one store transaction so
// concurrent attempts serialize on the user row. A bad password commits the
// incremented counter before ErrBadCredential is returned.
func (s *Service) Authenticate(
	ctx context.Context,
	username, password string,
) (session.Principal, error) {
	var (
		principal session.Principal
		authErr   error
		outcome   string
	)

	err := s.store.Atomically(ctx, func(repo Repository) error {
		user, err := repo.GetByUsernameForUpdate(ctx, username)
		if errors.Is(err, core.ErrUserNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(password, nil)
			authErr, outcome = err, "unknown_user"
			return nil
		}
		if err != nil {
			return err
		}

		if !user.IsActive {
			authErr, outcome = core.ErrAccountDisabled, "disabled"
			return nil
		}

		if user.IsLocked(s.lockoutThreshold) {
			authErr, outcome = core.ErrAccountLocked, "locked"
			return nil
		}

		valid, newHash, err := core.VerifyPasswordTimingSafe(
			password,
			&user.PasswordHash,
		)
		if err != nil {
			return fmt.Errorf("verify password: %w", err)
		}

		if !valid {
			attempts, err := repo.RecordFailedLogin(ctx, user.ID)
			if err != nil {
				return err
			}
			s.logger.WarnContext(ctx, "failed login",
				"username", user.Username,
				"failed_attempts", attempts,
				"locked", attempts >= s.lockoutThreshold,
			)
			authErr, outcome = core.ErrBadCredential, "bad_credential"
			return nil
		}

		if err := repo.RecordLogin(ctx, user.ID, s.now()); err != nil {
			return err
		}

		// Written under the row lock so a concurrent password change cannot
		// be overwritten by the old password's rehash.
		if newHash != "" {
			if err := repo.UpdatePassword(ctx, user.ID, newHash); err != nil {
				return err
			}
		}

		principal = session.Principal{Username: user.Username, Role: user.Role}
		return nil
	})
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return session.Principal{}, fmt.Errorf("authenticate: %w", err)
	}

	if authErr != nil {
		metrics.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
		return session.Principal{}, fmt.Errorf("authenticate: %w", authErr)
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return principal, nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	actor *session.Session,
	oldPassword, newPassword string,
) error {
	if actor == nil {
		return core.ErrUnauthenticated
	}

	if err := checkPassword(newPassword); err != nil {
		return err
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.store.Atomically(ctx, func(repo Repository) error {
		user, err := repo.GetByUsernameForUpdate(ctx, actor.Username)
		if err != nil {
			return err
		}

		valid, err := core.VerifyPassword(oldPassword, user.PasswordHash)
		if err != nil {
			return fmt.Errorf("verify password: %w", err)
		}
		if !valid {
			return core.ErrBadCredential
		}

		return repo.UpdatePassword(ctx, user.ID, newHash)
	})
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	s.logger.InfoContext(ctx, "password changed", "username", actor.Username)
	s.endSessions(ctx, actor.Username)

	return nil
}

// RequestReset issues a single-use reset token for the account owning email
// and hands it to the notifier. A newer token replaces any earlier one.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	user, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("request reset: %w", err)
	}

	token, err := s.generateToken(s.resetTokenLength)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	expiry := s.now().Add(s.resetTokenTTL)
	if err := s.store.SetResetToken(ctx, user.ID, core.HashToken(token), expiry); err != nil {
		return fmt.Errorf("request reset: %w", err)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		"username", user.Username,
		"expires_at", expiry,
	)

	msg, err := notify.PasswordReset(user.Email, user.Username, token, expiry)
	if err != nil {
		s.logger.ErrorContext(ctx, "render reset notification", "error", err)
		return nil
	}
	s.send(ctx, msg)

	return nil
}

// ConsumeReset replaces the password of the user holding token. The token is
// cleared in the same step, so it works once. The expiry instant itself is
// still valid.
func (s *Service) ConsumeReset(
	ctx context.Context,
	token, newPassword string,
) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var username string
	err = s.store.Atomically(ctx, func(repo Repository) error {
		user, err := repo.GetByResetTokenForUpdate(ctx, core.HashToken(token))
		if errors.Is(err, core.ErrUserNotFound) {
			return core.ErrTokenInvalid
		}
		if err != nil {
			return err
		}

		if user.ResetTokenExpired(s.now()) {
			return core.ErrTokenExpired
		}

		username = user.Username
		return repo.CompleteReset(ctx, user.ID, newHash)
	})
	if err != nil {
		return fmt.Errorf("consume reset: %w", err)
	}

	s.logger.InfoContext(ctx, "password reset completed", "username", username)
	s.endSessions(ctx, username)

	return nil
}

func (s *Service) Register(
	ctx context.Context,
	actor *session.Session,
	req RegisterRequest,
) (*User, error) {
	if err := session.Authorize(actor, policy.ManageUsers); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	role := policy.RoleEmployee
	if req.Role != "" {
		parsed, err := policy.ParseRole(req.Role)
		if err != nil {
			return nil, fmt.Errorf("register: %w", err)
		}
		role = parsed
	}

	user, err := s.create(ctx, req.Username, req.Email, req.Password, role)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered",
		"username", user.Username,
		"role", string(user.Role),
		"by", actor.Username,
	)

	msg, err := notify.Welcome(user.Email, user.Username, string(user.Role))
	if err != nil {
		s.logger.ErrorContext(ctx, "render welcome notification", "error", err)
		return user, nil
	}
	s.send(ctx, msg)

	return user, nil
}

// Bootstrap creates the first admin when no users exist yet. It reports
// whether an account was created.
func (s *Service) Bootstrap(
	ctx context.Context,
	username, email, password string,
) (bool, error) {
	if username == "" {
		return false, nil
	}

	n, err := s.store.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("bootstrap: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	if _, err := s.create(ctx, username, email, password, policy.RoleAdmin); err != nil {
		return false, fmt.Errorf("bootstrap: %w", err)
	}

	s.logger.InfoContext(ctx, "bootstrap admin created", "username", username)
	return true, nil
}

func (s *Service) ListUsers(
	ctx context.Context,
	actor *session.Session,
	params ListUsersParams,
) ([]User, int, error) {
	if err := session.Authorize(actor, policy.ManageUsers); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return s.store.List(ctx, params)
}

// SetActive enables or disables an account. Enabling also clears a lockout;
// disabling ends the account's sessions.
func (s *Service) SetActive(
	ctx context.Context,
	actor *session.Session,
	username string,
	active bool,
) (*User, error) {
	if err := session.Authorize(actor, policy.ManageUsers); err != nil {
		return nil, fmt.Errorf("set active: %w", err)
	}

	if !active && username == actor.Username {
		return nil, fmt.Errorf(
			"set active: cannot deactivate own account: %w",
			core.ErrInvalidInput,
		)
	}

	user, err := s.store.SetActive(ctx, username, active)
	if err != nil {
		return nil, fmt.Errorf("set active: %w", err)
	}

	s.logger.InfoContext(ctx, "account activation changed",
		"username", username,
		"active", active,
		"by", actor.Username,
	)

	if !active {
		s.endSessions(ctx, username)
	}

	return user, nil
}

func (s *Service) Me(ctx context.Context, actor *session.Session) (*User, error) {
	if actor == nil {
		return nil, core.ErrUnauthenticated
	}
	return s.store.GetByUsername(ctx, actor.Username)
}

// EmailFor returns the address on file for username.
func (s *Service) EmailFor(ctx context.Context, username string) (string, error) {
	user, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

func (s *Service) create(
	ctx context.Context,
	username, email, password string,
	role policy.Role,
) (*User, error) {
	if err := checkPassword(password); err != nil {
		return nil, err
	}

	hash, err := core.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:           uuid.New().String(),
		Username:     strings.TrimSpace(username),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}

	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) send(ctx context.Context, msg notify.Message) {
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "notification not sent",
			"to", msg.To,
			"subject", msg.Subject,
			"error", err,
		)
	}
}

func (s *Service) endSessions(ctx context.Context, username string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.EndAll(ctx, username); err != nil {
		s.logger.WarnContext(ctx, "ending sessions failed",
			"username", username,
			"error", err,
		)
	}
}

func checkPassword(password string) error {
	if n := len(password); n < minPasswordLength || n > maxPasswordLength {
		return fmt.Errorf(
			"password must be %d to %d characters: %w",
			minPasswordLength,
			maxPasswordLength,
			core.ErrInvalidInput,
		)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
