package health_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/learnhub/internal/app/features/health"
	"github.com/dalemusser/learnhub/internal/testutil"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func serve(t *testing.T, h *health.Handler) (int, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Serve(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rec.Code, resp
}

func TestServe_NothingConfigured(t *testing.T) {
	code, resp := serve(t, health.NewHandler(nil, nil, zap.NewNop()))

	if code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, code)
	}
	if resp.Status != "ok" {
		t.Errorf("status: got %q, want %q", resp.Status, "ok")
	}
	if resp.Checks["mongo"] != "not_configured" || resp.Checks["redis"] != "not_configured" {
		t.Errorf("expected both backends not configured, got %v", resp.Checks)
	}
}

func TestServe_MongoConnected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	code, resp := serve(t, health.NewHandler(db.Client(), nil, zap.NewNop()))

	if code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, code)
	}
	if resp.Checks["mongo"] != "connected" {
		t.Errorf("mongo: got %q, want %q", resp.Checks["mongo"], "connected")
	}
}

func TestServe_RedisConnected(t *testing.T) {
	rdb := testutil.SetupTestRedis(t)
	code, resp := serve(t, health.NewHandler(nil, rdb, zap.NewNop()))

	if code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, code)
	}
	if resp.Checks["redis"] != "connected" {
		t.Errorf("redis: got %q, want %q", resp.Checks["redis"], "connected")
	}
}

func TestServe_RedisUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer rdb.Close()

	code, resp := serve(t, health.NewHandler(nil, rdb, zap.NewNop()))

	if code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, code)
	}
	if resp.Status != "error" || resp.Checks["redis"] != "disconnected" {
		t.Errorf("expected redis disconnected, got %+v", resp)
	}
}
