// internal/app/system/ratelimit/login.go
package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LoginLimiter throttles sign-in attempts per client IP and per email.
type LoginLimiter struct {
	ip    Window
	email Window
	log   *zap.Logger
}

// NewLoginLimiter uses in-process windows: 10 attempts per IP per minute,
// 5 attempts per email per 5 minutes.
func NewLoginLimiter() *LoginLimiter {
	return NewLoginLimiterWithConfig(10, time.Minute, 5, 5*time.Minute)
}

// NewLoginLimiterWithConfig creates an in-process login limiter with custom limits.
func NewLoginLimiterWithConfig(ipLimit int, ipDuration time.Duration, emailLimit int, emailDuration time.Duration) *LoginLimiter {
	return NewLoginLimiterWith(New(ipLimit, ipDuration), New(emailLimit, emailDuration), nil)
}

// NewLoginLimiterWith builds a login limiter over arbitrary windows, e.g.
// Redis-backed ones shared between instances.
func NewLoginLimiterWith(ip, email Window, logger *zap.Logger) *LoginLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginLimiter{ip: ip, email: email, log: logger}
}

// Check records an attempt and reports whether it may proceed. When the
// window backend fails the attempt is allowed; the backend's own login
// throttling remains in force.
func (ll *LoginLimiter) Check(r *http.Request, email string) (bool, string) {
	ctx := r.Context()

	if !ll.allow(ctx, ll.ip, ClientIP(r)) {
		return false, "Too many login attempts. Please wait a minute before trying again."
	}
	if key := emailKey(email); key != "" {
		if !ll.allow(ctx, ll.email, key) {
			return false, "Too many login attempts for this account. Please wait a few minutes."
		}
	}
	return true, ""
}

// ResetEmail clears the email window after a successful sign-in.
func (ll *LoginLimiter) ResetEmail(email string) {
	key := emailKey(email)
	if key == "" {
		return
	}
	if err := ll.email.Reset(context.Background(), key); err != nil {
		ll.log.Warn("rate limit reset failed", zap.Error(err))
	}
}

// Close stops any in-process windows.
func (ll *LoginLimiter) Close() {
	for _, w := range []Window{ll.ip, ll.email} {
		if l, ok := w.(*Limiter); ok {
			l.Close()
		}
	}
}

func (ll *LoginLimiter) allow(ctx context.Context, w Window, key string) bool {
	ok, err := w.Allow(ctx, key)
	if err != nil {
		ll.log.Warn("rate limit check failed; allowing", zap.Error(err))
		return true
	}
	return ok
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
