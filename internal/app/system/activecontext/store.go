// Package activecontext holds the active organization ("context") of each
// browser client and keeps it consistent with the URL being rendered.
//
// A Store is the single source of truth for one client. Its active slug lives
// in a mirror cell that is written before SetActiveSlug returns and read
// without locks, so an outgoing request built after a SetActiveSlug call can
// never observe the previous value. The empty slug means personal scope.
package activecontext

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dalemusser/learnhub/internal/app/system/backend"
	"github.com/dalemusser/learnhub/internal/app/system/slugs"
	"github.com/dalemusser/learnhub/internal/app/system/timeouts"
	"github.com/dalemusser/learnhub/internal/domain/models"
	"go.uber.org/zap"
)

// Storage persists one active slug per client. Load reports ok=false when
// the client has no entry.
type Storage interface {
	Load(ctx context.Context, clientID string) (slug string, ok bool, err error)
	Save(ctx context.Context, clientID, slug string) error
	Delete(ctx context.Context, clientID string) error
}

// ProfileFetcher resolves the detail record of an organization.
type ProfileFetcher interface {
	OrganizationDetails(ctx context.Context, slug string) (models.OrganizationProfile, error)
}

// Options configures Stores opened directly or through a Registry.
type Options struct {
	Storage      Storage
	Fetcher      ProfileFetcher
	Logger       *zap.Logger
	FetchTimeout time.Duration // zero means timeouts.Short()
}

// Snapshot is a consistent copy of a Store's observable state.
type Snapshot struct {
	ActiveSlug  string                      `json:"active_slug"`
	ActiveRole  string                      `json:"active_role,omitempty"`
	Profile     *models.OrganizationProfile `json:"profile"`
	IsLoading   bool                        `json:"is_loading"`
	IsVerifying bool                        `json:"is_verifying"`
}

// Store is the active context of one client.
type Store struct {
	clientID     string
	storage      Storage
	fetcher      ProfileFetcher
	log          *zap.Logger
	fetchTimeout time.Duration

	// slug is the synchronous mirror cell read by the request binder.
	slug atomic.Pointer[string]

	// writeMu serializes writers so storage always holds the last commit.
	writeMu sync.Mutex

	mu         sync.Mutex
	credential string
	roles      map[string]string
	profile    *models.OrganizationProfile
	loading    bool
	verifying  int
	gen        uint64

	lastUsed atomic.Int64
	fetches  sync.WaitGroup
}

// Open creates the Store for clientID and adopts the slug found in storage
// before returning. A storage error is logged and the Store starts in
// personal scope.
func Open(ctx context.Context, clientID string, opts Options) *Store {
	s := &Store{
		clientID:     clientID,
		storage:      opts.Storage,
		fetcher:      opts.Fetcher,
		log:          opts.Logger,
		fetchTimeout: opts.FetchTimeout,
		roles:        map[string]string{},
	}
	if s.storage == nil {
		s.storage = discard{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.fetchTimeout <= 0 {
		s.fetchTimeout = timeouts.Short()
	}

	initial := ""
	v, ok, err := s.storage.Load(ctx, clientID)
	switch {
	case err != nil:
		s.log.Warn("active context: storage read failed, starting in personal scope",
			zap.String("client_id", clientID), zap.Error(err))
	case ok && !absentMarker(v):
		initial = slugs.Normalize(v)
	}
	s.slug.Store(&initial)
	s.touch()
	return s
}

// absentMarker reports values that earlier clients wrote instead of removing
// the entry.
func absentMarker(v string) bool {
	switch slugs.Normalize(v) {
	case "", "null", "undefined":
		return true
	}
	return false
}

// ClientID returns the client this Store belongs to.
func (s *Store) ClientID() string { return s.clientID }

// ActiveSlug returns the most recently committed slug ("" for personal scope).
func (s *Store) ActiveSlug() string {
	return *s.slug.Load()
}

// SetActiveSlug commits slug, persists it (removing the entry for personal
// scope) and schedules a profile fetch. Setting the current value again does
// nothing. A persistence error is returned, but the commit stands.
func (s *Store) SetActiveSlug(ctx context.Context, slug string) error {
	slug = slugs.Normalize(slug)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if slug == s.ActiveSlug() {
		return nil
	}
	s.slug.Store(&slug)

	s.mu.Lock()
	s.profile = nil
	gen := s.scheduleLocked(slug)
	cred := s.credential
	s.mu.Unlock()

	var err error
	if slug == "" {
		err = s.storage.Delete(ctx, s.clientID)
	} else {
		err = s.storage.Save(ctx, s.clientID, slug)
	}
	if err != nil {
		s.log.Warn("active context: persist failed",
			zap.String("client_id", s.clientID),
			zap.String("slug", slug),
			zap.Error(err))
		err = fmt.Errorf("persist active slug: %w", err)
	}

	s.startFetch(gen, slug, cred)
	return err
}

// SetCredentials records the backend credential of the client's session.
// No profile is fetched while the credential is empty; gaining one while an
// organization is active triggers a fetch, losing one drops the profile.
func (s *Store) SetCredentials(credential string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if credential == s.credential {
		s.mu.Unlock()
		return
	}
	s.credential = credential
	slug := s.ActiveSlug()
	if credential == "" {
		s.profile = nil
	}
	gen := s.scheduleLocked(slug)
	s.mu.Unlock()

	s.startFetch(gen, slug, credential)
}

// SetMemberships records the roles the session holds, keyed by organization.
func (s *Store) SetMemberships(ms []models.Membership) {
	roles := make(map[string]string, len(ms))
	for _, m := range ms {
		if m.IsActive {
			roles[slugs.Normalize(m.OrganizationSlug)] = m.Role
		}
	}
	s.mu.Lock()
	s.roles = roles
	s.mu.Unlock()
}

// SetRole records the role held in slug, typically as confirmed by an access
// check.
func (s *Store) SetRole(slug, role string) {
	if role == "" {
		return
	}
	s.mu.Lock()
	s.roles[slugs.Normalize(slug)] = role
	s.mu.Unlock()
}

// BeginVerify marks an access check in progress until the returned func is
// called.
func (s *Store) BeginVerify() func() {
	s.mu.Lock()
	s.verifying++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.verifying--
			s.mu.Unlock()
		})
	}
}

// Snapshot returns the current observable state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	slug := s.ActiveSlug()
	snap := Snapshot{
		ActiveSlug:  slug,
		IsLoading:   s.loading,
		IsVerifying: s.verifying > 0,
	}
	if slug != "" {
		snap.ActiveRole = s.roles[slug]
	}
	if s.profile != nil {
		p := *s.profile
		snap.Profile = &p
	}
	return snap
}

// Wait blocks until in-flight profile fetches have finished.
func (s *Store) Wait() {
	s.fetches.Wait()
}

// Await waits for in-flight profile fetches, or until ctx is done, and
// returns the resulting Snapshot. Pages use it to render a resolved profile
// when one is moments away.
func (s *Store) Await(ctx context.Context) Snapshot {
	done := make(chan struct{})
	go func() {
		s.fetches.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return s.Snapshot()
}

// scheduleLocked invalidates any in-flight fetch and returns the generation
// for a new one, or 0 when no fetch should run. Caller holds s.mu.
func (s *Store) scheduleLocked(slug string) uint64 {
	s.gen++
	if slug == "" || s.credential == "" || s.fetcher == nil {
		s.loading = false
		s.profile = nil
		return 0
	}
	s.loading = true
	return s.gen
}

func (s *Store) startFetch(gen uint64, slug, credential string) {
	if gen == 0 {
		return
	}
	s.fetches.Add(1)
	go func() {
		defer s.fetches.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
		defer cancel()
		ctx = backend.WithCredentials(WithStore(ctx, s), credential)

		profile, err := s.fetcher.OrganizationDetails(ctx, slug)
		s.applyProfile(gen, slug, profile, err)
	}()
}

func (s *Store) applyProfile(gen uint64, slug string, profile models.OrganizationProfile, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || slug != s.ActiveSlug() {
		s.log.Debug("active context: discarding stale profile",
			zap.String("client_id", s.clientID),
			zap.String("fetched_slug", slug))
		return
	}
	s.loading = false
	if err != nil {
		s.profile = nil
		s.log.Warn("active context: profile fetch failed",
			zap.String("client_id", s.clientID),
			zap.String("slug", slug),
			zap.Error(err))
		return
	}
	s.profile = &profile
}

func (s *Store) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *Store) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// discard is used when no durable storage is configured.
type discard struct{}

func (discard) Load(context.Context, string) (string, bool, error) { return "", false, nil }
func (discard) Save(context.Context, string, string) error         { return nil }
func (discard) Delete(context.Context, string) error               { return nil }
