// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/learnhub/internal/app/system/slugs"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Context storage kinds.
const (
	StorageMongo  = "mongo"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// appConfigKeys defines the configuration keys for LearnHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, api_base_url, etc.
//   - Environment variables: LEARNHUB_MONGO_URI, LEARNHUB_API_BASE_URL, etc.
//   - Command-line flags: --mongo_uri, --api_base_url, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "learnhub", Desc: "MongoDB database name"},
	{Name: "redis_url", Default: "", Desc: "Redis URL (redis://host:6379/0); blank disables Redis"},

	// Active context
	{Name: "context_storage", Default: StorageMongo, Desc: "Where active slugs are kept: 'mongo', 'redis' or 'memory'"},
	{Name: "context_ttl", Default: "720h", Desc: "Lifetime of a stored active slug (0 keeps it forever)"},
	{Name: "context_idle_ttl", Default: "30m", Desc: "Evict in-memory context stores idle this long"},
	{Name: "context_sweep_interval", Default: "5m", Desc: "How often idle context stores are evicted"},

	// Sessions
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session secret (must be strong in production)"},
	{Name: "session_name", Default: "learnhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime"},

	// Backend API
	{Name: "api_base_url", Default: "http://localhost:8000/api", Desc: "Base URL of the LearnHub REST API"},
	{Name: "api_timeout", Default: "10s", Desc: "Timeout for each backend request"},
	{Name: "access_check_timeout", Default: "5s", Desc: "Timeout for organization access checks and profile fetches"},
	{Name: "org_header", Default: "X-Organization-Slug", Desc: "Header carrying the active organization on backend requests"},
	{Name: "backend_session_cookie", Default: "sessionid", Desc: "Name of the backend session cookie"},

	{Name: "reserved_slugs", Default: "", Desc: "Extra reserved first path segments, comma separated"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env and config files,
// environment variables (WAFFLE_* for core, LEARNHUB_* for app) and
// command-line flags, with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "LEARNHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:      appValues.String("mongo_uri"),
		MongoDatabase: appValues.String("mongo_database"),
		RedisURL:      strings.TrimSpace(appValues.String("redis_url")),

		ContextStorage:       strings.ToLower(strings.TrimSpace(appValues.String("context_storage"))),
		ContextTTL:           appValues.Duration("context_ttl", 720*time.Hour),
		ContextIdleTTL:       appValues.Duration("context_idle_ttl", 30*time.Minute),
		ContextSweepInterval: appValues.Duration("context_sweep_interval", 5*time.Minute),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 720*time.Hour),

		APIBaseURL:           strings.TrimSpace(appValues.String("api_base_url")),
		APITimeout:           appValues.Duration("api_timeout", 10*time.Second),
		AccessCheckTimeout:   appValues.Duration("access_check_timeout", 5*time.Second),
		OrgHeader:            appValues.String("org_header"),
		BackendSessionCookie: appValues.String("backend_session_cookie"),

		ReservedSlugs: slugs.ParseList(appValues.String("reserved_slugs")),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// Storage settings are checked here so a misconfigured deployment fails
// before any connection is attempted.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	switch appCfg.ContextStorage {
	case StorageMongo:
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if appCfg.MongoDatabase == "" {
			return fmt.Errorf("context_storage %q requires mongo_database", StorageMongo)
		}
	case StorageRedis:
		if appCfg.RedisURL == "" {
			return fmt.Errorf("context_storage %q requires redis_url", StorageRedis)
		}
	case StorageMemory:
		logger.Warn("active contexts are kept in memory and will not survive a restart")
	default:
		return fmt.Errorf("context_storage must be %q, %q or %q, got %q",
			StorageMongo, StorageRedis, StorageMemory, appCfg.ContextStorage)
	}

	if appCfg.RedisURL != "" {
		if _, err := redis.ParseURL(appCfg.RedisURL); err != nil {
			return fmt.Errorf("invalid redis_url: %w", err)
		}
	}

	if appCfg.APIBaseURL == "" {
		return fmt.Errorf("api_base_url is required")
	}
	u, err := url.Parse(appCfg.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_base_url must be an absolute http(s) URL, got %q", appCfg.APIBaseURL)
	}

	if appCfg.OrgHeader == "" {
		return fmt.Errorf("org_header must not be empty")
	}
	if appCfg.SessionName == "" {
		return fmt.Errorf("session_name must not be empty")
	}
	if coreCfg != nil && coreCfg.Env == "prod" && strings.HasPrefix(appCfg.SessionKey, "dev-only") {
		return fmt.Errorf("session_key must be set in production")
	}
	return nil
}
