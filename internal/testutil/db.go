package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Environment variables that enable integration tests.
const (
	MongoURIEnv = "LEARNHUB_TEST_MONGO_URI"
	RedisURLEnv = "LEARNHUB_TEST_REDIS_URL"
)

// TestContext returns a context with a timeout suitable for a single test
// step.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// SetupTestDB connects to the Mongo server named by LEARNHUB_TEST_MONGO_URI
// and returns a uniquely named database that is dropped when the test ends.
// The test is skipped when the variable is unset.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv(MongoURIEnv)
	if uri == "" {
		t.Skipf("%s not set; skipping Mongo test", MongoURIEnv)
	}

	ctx, cancel := TestContext()
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("ping mongo: %v", err)
	}

	db := client.Database(fmt.Sprintf("learnhub_test_%s", uuid.NewString()[:8]))
	t.Cleanup(func() {
		ctx, cancel := TestContext()
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

// SetupTestRedis connects to the Redis server named by
// LEARNHUB_TEST_REDIS_URL. The test is skipped when the variable is unset.
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv(RedisURLEnv)
	if url == "" {
		t.Skipf("%s not set; skipping Redis test", RedisURLEnv)
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := TestContext()
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}
