// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/learnhub/internal/app/store/activeslugs"
	"github.com/dalemusser/learnhub/internal/app/system/activecontext"
	"github.com/dalemusser/learnhub/internal/app/system/backend"
	"github.com/dalemusser/learnhub/internal/app/system/binder"
	"github.com/dalemusser/learnhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// ConnectDB opens the configured databases and builds the backend client and
// the active context registry on top of them.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	var deps DBDeps

	timeouts.Configure(timeouts.Config{Short: appCfg.AccessCheckTimeout, Medium: appCfg.APITimeout})
	timeouts.Log(logger)

	if appCfg.ContextStorage == StorageMongo {
		client, err := connectMongo(ctx, appCfg.MongoURI)
		if err != nil {
			return DBDeps{}, err
		}
		deps.MongoClient = client
		deps.MongoDatabase = client.Database(appCfg.MongoDatabase)
		logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))
	}

	if appCfg.RedisURL != "" {
		rdb, err := connectRedis(ctx, appCfg.RedisURL)
		if err != nil {
			disconnect(deps, logger)
			return DBDeps{}, err
		}
		deps.Redis = rdb
		logger.Info("connected to Redis")
	}

	deps.HTTPClient = &http.Client{Timeout: appCfg.APITimeout}
	binder.Install(deps.HTTPClient, appCfg.OrgHeader)
	deps.Backend = backend.New(appCfg.APIBaseURL,
		backend.WithHTTPClient(deps.HTTPClient),
		backend.WithCredentialCookie(appCfg.BackendSessionCookie))

	deps.Contexts = activecontext.NewRegistry(activecontext.Options{
		Storage:      contextStorage(appCfg, deps),
		Fetcher:      deps.Backend,
		Logger:       logger,
		FetchTimeout: timeouts.Short(),
	})
	return deps, nil
}

func connectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	return client, nil
}

func connectRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis_url: %w", err)
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping Redis: %w", err)
	}
	return rdb, nil
}

// contextStorage picks the durable storage for active slugs.
func contextStorage(appCfg AppConfig, deps DBDeps) activecontext.Storage {
	switch {
	case appCfg.ContextStorage == StorageMongo && deps.MongoDatabase != nil:
		return activeslugs.NewMongo(deps.MongoDatabase, appCfg.ContextTTL)
	case appCfg.ContextStorage == StorageRedis && deps.Redis != nil:
		return activeslugs.NewRedis(deps.Redis, activeslugs.DefaultRedisPrefix, appCfg.ContextTTL)
	default:
		return activeslugs.NewMemory()
	}
}

// EnsureSchema creates the active slug indexes when Mongo holds them.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.MongoDatabase == nil {
		return nil
	}
	store := activeslugs.NewMongo(deps.MongoDatabase, appCfg.ContextTTL)
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Error("ensure active slug indexes", zap.Error(err))
		return fmt.Errorf("ensure indexes: %w", err)
	}
	return nil
}

func disconnect(deps DBDeps, logger *zap.Logger) {
	if deps.MongoClient != nil {
		if err := deps.MongoClient.Disconnect(context.Background()); err != nil {
			logger.Warn("MongoDB disconnect failed", zap.Error(err))
		}
	}
}
