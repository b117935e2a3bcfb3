package activecontext

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dalemusser/learnhub/internal/domain/models"
	"go.uber.org/zap"
)

// Registry owns one Store per client ID.
type Registry struct {
	opts Options

	mu     sync.Mutex
	stores map[string]*entry
}

type entry struct {
	ready chan struct{}
	store *Store
}

// NewRegistry creates an empty Registry whose Stores share opts.
func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Registry{opts: opts, stores: make(map[string]*entry)}
}

// Get returns the Store for clientID, opening it from storage on first use.
// Concurrent first calls for the same client share one Open.
func (r *Registry) Get(ctx context.Context, clientID string) *Store {
	r.mu.Lock()
	e, ok := r.stores[clientID]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		r.stores[clientID] = e
	}
	r.mu.Unlock()

	if !ok {
		e.store = Open(ctx, clientID, r.opts)
		close(e.ready)
	} else {
		<-e.ready
	}
	e.store.touch()
	return e.store
}

// Forget drops the in-memory Store for clientID. Its storage entry is kept.
func (r *Registry) Forget(clientID string) {
	r.mu.Lock()
	delete(r.stores, clientID)
	r.mu.Unlock()
}

// Sweep drops Stores unused for longer than idle and returns how many were
// dropped.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, e := range r.stores {
		select {
		case <-e.ready:
		default:
			continue // still opening
		}
		if e.store.idleSince().Before(cutoff) {
			delete(r.stores, id)
			n++
		}
	}
	return n
}

// Len returns the number of Stores held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Client identifies the browser behind a request and what its session knows.
type Client struct {
	ID          string
	Credential  string // backend session credential; empty when signed out
	Memberships []models.Membership
}

// ClientResolver extracts the Client from a request. ok=false means the
// request has no client identity and gets no Store.
type ClientResolver func(r *http.Request) (Client, bool)

// Middleware attaches the client's Store to the request context and brings
// its credential and memberships up to date with the session.
func (r *Registry) Middleware(resolve ClientResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			c, ok := resolve(req)
			if !ok || c.ID == "" {
				next.ServeHTTP(w, req)
				return
			}
			s := r.Get(req.Context(), c.ID)
			s.SetMemberships(c.Memberships)
			s.SetCredentials(c.Credential)
			next.ServeHTTP(w, req.WithContext(WithStore(req.Context(), s)))
		})
	}
}
