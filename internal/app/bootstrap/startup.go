// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"sync"

	"github.com/dalemusser/learnhub/internal/app/resources"
	"github.com/dalemusser/learnhub/internal/app/system/ratelimit"
	"github.com/dalemusser/learnhub/internal/app/system/slugs"
	"github.com/dalemusser/learnhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// background holds workers started in Startup and stopped in Shutdown.
var background struct {
	mu      sync.Mutex
	sweeper *workers.ContextSweeper
	limiter *ratelimit.LoginLimiter
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	resources.LoadSharedTemplates()

	slugs.Configure(appCfg.ReservedSlugs)
	if len(appCfg.ReservedSlugs) > 0 {
		logger.Info("extra reserved slugs", zap.Strings("slugs", appCfg.ReservedSlugs))
	}

	if deps.Contexts != nil && appCfg.ContextSweepInterval > 0 && appCfg.ContextIdleTTL > 0 {
		sw := workers.NewContextSweeper(deps.Contexts, logger, appCfg.ContextSweepInterval, appCfg.ContextIdleTTL)
		sw.Start()

		background.mu.Lock()
		background.sweeper = sw
		background.mu.Unlock()
	}
	return nil
}
