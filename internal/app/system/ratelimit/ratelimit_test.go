package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/learnhub/internal/testutil"
)

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	l := New(3, time.Minute)
	defer l.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow(ctx, "k"); !ok {
			t.Fatalf("hit %d should be allowed", i+1)
		}
	}
	if ok, _ := l.Allow(ctx, "k"); ok {
		t.Error("4th hit should be blocked")
	}
	if ok, _ := l.Allow(ctx, "other"); !ok {
		t.Error("other keys are counted separately")
	}
}

func TestLimiter_WindowExpires(t *testing.T) {
	l := New(1, 20*time.Millisecond)
	defer l.Close()
	ctx := context.Background()

	l.Allow(ctx, "k")
	if ok, _ := l.Allow(ctx, "k"); ok {
		t.Fatal("second hit inside the window should be blocked")
	}
	time.Sleep(30 * time.Millisecond)
	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Error("hit after the window should be allowed")
	}
}

func TestLimiter_ResetAndSweep(t *testing.T) {
	l := New(1, time.Minute)
	defer l.Close()
	ctx := context.Background()

	l.Allow(ctx, "k")
	_ = l.Reset(ctx, "k")
	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Error("hit after Reset should be allowed")
	}

	l.Allow(ctx, "old")
	l.sweep(time.Now().Add(2 * time.Minute))
	l.mu.Lock()
	n := len(l.windows)
	l.mu.Unlock()
	if n != 0 {
		t.Errorf("sweep left %d windows", n)
	}
}

func TestLimiter_CloseIsIdempotent(t *testing.T) {
	l := New(1, time.Millisecond)
	l.Close()
	l.Close()
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded", "203.0.113.7, 10.0.0.1", "", "10.0.0.1:1234", "203.0.113.7"},
		{"real ip", "", "198.51.100.2", "10.0.0.1:1234", "198.51.100.2"},
		{"remote with port", "", "", "192.0.2.1:5555", "192.0.2.1"},
		{"remote without port", "", "", "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoginLimiter_EmailLimitIsCaseInsensitive(t *testing.T) {
	ll := NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute)
	defer ll.Close()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)

	ll.Check(r, "Ada@Example.com")
	ll.Check(r, " ada@example.com ")
	ok, reason := ll.Check(r, "ADA@EXAMPLE.COM")
	if ok || reason == "" {
		t.Fatal("third attempt for the same account should be blocked")
	}

	ll.ResetEmail("ada@example.com")
	if ok, _ := ll.Check(r, "ada@example.com"); !ok {
		t.Error("attempt after ResetEmail should be allowed")
	}
}

func TestLoginLimiter_IPLimit(t *testing.T) {
	ll := NewLoginLimiterWithConfig(1, time.Minute, 100, time.Minute)
	defer ll.Close()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)

	ll.Check(r, "a@example.com")
	if ok, _ := ll.Check(r, "b@example.com"); ok {
		t.Error("second attempt from the same IP should be blocked")
	}
}

type failingWindow struct{}

func (failingWindow) Allow(context.Context, string) (bool, error) { return false, errors.New("down") }
func (failingWindow) Reset(context.Context, string) error         { return errors.New("down") }

func TestLoginLimiter_BackendErrorAllows(t *testing.T) {
	ll := NewLoginLimiterWith(failingWindow{}, failingWindow{}, nil)
	r := httptest.NewRequest(http.MethodPost, "/login", nil)

	if ok, _ := ll.Check(r, "a@example.com"); !ok {
		t.Error("window errors should not block sign-in")
	}
	ll.ResetEmail("a@example.com")
}

func TestRedisWindow(t *testing.T) {
	rdb := testutil.SetupTestRedis(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	prefix := "learnhub_test:rl:" + t.Name() + ":"
	w := NewRedisWindow(rdb, prefix, 2, time.Minute)
	t.Cleanup(func() { _ = w.Reset(context.Background(), "k") })

	for i := 0; i < 2; i++ {
		ok, err := w.Allow(ctx, "k")
		if err != nil || !ok {
			t.Fatalf("hit %d: ok=%v err=%v", i+1, ok, err)
		}
	}
	if ok, err := w.Allow(ctx, "k"); err != nil || ok {
		t.Errorf("3rd hit: ok=%v err=%v, want blocked", ok, err)
	}
	ttl, err := rdb.TTL(ctx, prefix+"k").Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v (err %v), want within the window", ttl, err)
	}
	if err := w.Reset(ctx, "k"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if ok, _ := w.Allow(ctx, "k"); !ok {
		t.Error("hit after Reset should be allowed")
	}
}
