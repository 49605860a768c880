// Package throttle locks out an email address after repeated failed
// logins. Counters live in Redis so every server instance sees the same
// lockout state.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "login:fail:"

// Connect creates a Redis client and checks that the server answers.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("throttle: ping: %w", err)
	}
	return client, nil
}

// LoginLimiter counts failed logins per email in fixed windows. The
// window starts at the first failure; once maxAttempts failures are
// recorded the email stays locked until the key expires.
type LoginLimiter struct {
	client      redis.Cmdable
	maxAttempts int64
	window      time.Duration
}

// NewLoginLimiter returns a limiter allowing maxAttempts failures per window.
func NewLoginLimiter(client redis.Cmdable, maxAttempts int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		client:      client,
		maxAttempts: int64(maxAttempts),
		window:      window,
	}
}

func key(email string) string {
	return keyPrefix + email
}

// Locked reports whether email has used up its failed attempts.
func (l *LoginLimiter) Locked(ctx context.Context, email string) (bool, error) {
	n, err := l.client.Get(ctx, key(email)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("throttle: reading failures: %w", err)
	}
	return n >= l.maxAttempts, nil
}

// RecordFailure counts one failed login for email.
func (l *LoginLimiter) RecordFailure(ctx context.Context, email string) error {
	k := key(email)
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("throttle: counting failure: %w", err)
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return fmt.Errorf("throttle: setting window: %w", err)
		}
	}
	return nil
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, email string) error {
	if err := l.client.Del(ctx, key(email)).Err(); err != nil {
		return fmt.Errorf("throttle: resetting failures: %w", err)
	}
	return nil
}
