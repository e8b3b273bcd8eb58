// AngelaMos | 2026
// revocation.go

package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore remembers sessions that ended before their token expired.
// Entries only need to outlive the longest token lifetime.
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
	// RevokeUser invalidates every session of username issued at or before
	// at. The cutoff keeps nanosecond precision.
	RevokeUser(
		ctx context.Context,
		username string,
		at time.Time,
		ttl time.Duration,
	) error
	// RevokedBefore returns the cutoff set by RevokeUser, or the zero time.
	RevokedBefore(ctx context.Context, username string) (time.Time, error)
}

type RedisRevocations struct {
	client *redis.Client
}

func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client}
}

func sessionKey(id string) string {
	return "session:revoked:" + id
}

func userKey(username string) string {
	return "session:revoked_before:" + username
}

func (r *RedisRevocations) Revoke(
	ctx context.Context,
	sessionID string,
	ttl time.Duration,
) error {
	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, sessionKey(sessionID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (r *RedisRevocations) IsRevoked(
	ctx context.Context,
	sessionID string,
) (bool, error) {
	exists, err := r.client.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked session: %w", err)
	}

	return exists > 0, nil
}

func (r *RedisRevocations) RevokeUser(
	ctx context.Context,
	username string,
	at time.Time,
	ttl time.Duration,
) error {
	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, userKey(username), encodeCutoff(at), ttl).Err(); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}

	return nil
}

func (r *RedisRevocations) RevokedBefore(
	ctx context.Context,
	username string,
) (time.Time, error) {
	value, err := r.client.Get(ctx, userKey(username)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get user revocation: %w", err)
	}

	return decodeCutoff(value)
}

func encodeCutoff(at time.Time) string {
	return strconv.FormatInt(at.UnixNano(), 10)
}

func decodeCutoff(value string) (time.Time, error) {
	nanos, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse user revocation: %w", err)
	}
	return time.Unix(0, nanos), nil
}
