// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/learnhub/internal/app/system/activecontext"
	"github.com/dalemusser/learnhub/internal/app/system/backend"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database and back-end dependencies for the app.
// Mongo and Redis are nil when not configured.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
	Redis         *redis.Client

	// HTTPClient is the single client for backend calls; the request
	// binder is installed on its transport.
	HTTPClient *http.Client
	Backend    *backend.Client

	// Contexts owns the per-client active context Stores.
	Contexts *activecontext.Registry
}
