package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/learnhub/internal/app/system/timeouts"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Handler holds the backends the health check pings. Nil backends are not
// configured and are reported as such.
type Handler struct {
	Mongo *mongo.Client
	Redis *redis.Client
	Log   *zap.Logger
}

// NewHandler constructs a health Handler.
func NewHandler(mongoClient *mongo.Client, redisClient *redis.Client, logger *zap.Logger) *Handler {
	return &Handler{
		Mongo: mongoClient,
		Redis: redisClient,
		Log:   logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Message string            `json:"message,omitempty"`
}

const (
	stateConnected     = "connected"
	stateDisconnected  = "disconnected"
	stateNotConfigured = "not_configured"
)

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "checks":{"mongo":"connected","redis":"not_configured"} }
//
// When any configured backend fails its ping: 503 with "status":"error".
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	resp := healthResponse{
		Status: "ok",
		Checks: map[string]string{
			"mongo": stateNotConfigured,
			"redis": stateNotConfigured,
		},
	}

	if h.Mongo != nil {
		resp.Checks["mongo"] = stateConnected
		if err := h.Mongo.Ping(ctx, readpref.Primary()); err != nil {
			h.Log.Error("health-check: mongo ping failed", zap.Error(err))
			resp.Checks["mongo"] = stateDisconnected
		}
	}
	if h.Redis != nil {
		resp.Checks["redis"] = stateConnected
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			h.Log.Error("health-check: redis ping failed", zap.Error(err))
			resp.Checks["redis"] = stateDisconnected
		}
	}

	w.Header().Set("Content-Type", "application/json")
	for _, v := range resp.Checks {
		if v == stateDisconnected {
			resp.Status = "error"
			resp.Message = "Storage unavailable"
			w.WriteHeader(http.StatusServiceUnavailable)
			break
		}
	}
	_ = json.NewEncoder(w).Encode(resp)
}
