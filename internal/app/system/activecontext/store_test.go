package activecontext_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/learnhub/internal/app/system/activecontext"
	"github.com/dalemusser/learnhub/internal/app/system/backend"
	"github.com/dalemusser/learnhub/internal/domain/models"
)

// memStorage is an in-memory Storage that counts writes.
type memStorage struct {
	mu      sync.Mutex
	data    map[string]string
	saves   int
	deletes int
	loadErr error
	saveErr error
}

func newMemStorage() *memStorage {
	return &memStorage{data: map[string]string{}}
}

func (m *memStorage) Load(_ context.Context, id string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return "", false, m.loadErr
	}
	v, ok := m.data[id]
	return v, ok, nil
}

func (m *memStorage) Save(_ context.Context, id, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[id] = slug
	return nil
}

func (m *memStorage) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.data, id)
	return nil
}

func (m *memStorage) entry(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[id]
	return v, ok
}

// gatedFetcher blocks each fetch until released for that slug.
type gatedFetcher struct {
	mu      sync.Mutex
	calls   []string
	creds   []string
	gates   map[string]chan struct{}
	results map[string]error
	blocked bool
}

func newFetcher(blocked bool) *gatedFetcher {
	return &gatedFetcher{gates: map[string]chan struct{}{}, results: map[string]error{}, blocked: blocked}
}

func (f *gatedFetcher) gate(slug string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gates[slug]
	if !ok {
		g = make(chan struct{})
		f.gates[slug] = g
	}
	return g
}

func (f *gatedFetcher) release(slug string) { close(f.gate(slug)) }

func (f *gatedFetcher) OrganizationDetails(ctx context.Context, slug string) (models.OrganizationProfile, error) {
	f.mu.Lock()
	f.calls = append(f.calls, slug)
	f.creds = append(f.creds, backend.CredentialsFrom(ctx))
	blocked := f.blocked
	err := f.results[slug]
	f.mu.Unlock()

	if blocked {
		<-f.gate(slug)
	}
	if err != nil {
		return models.OrganizationProfile{}, err
	}
	return models.OrganizationProfile{Name: "Org " + slug, Slug: slug}, nil
}

func (f *gatedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func openStore(t *testing.T, st *memStorage, f *gatedFetcher) *activecontext.Store {
	t.Helper()
	opts := activecontext.Options{Storage: st}
	if f != nil {
		opts.Fetcher = f
	}
	s := activecontext.Open(context.Background(), "client-1", opts)
	t.Cleanup(s.Wait)
	return s
}

func TestOpen_EmptyStorageIsPersonal(t *testing.T) {
	s := openStore(t, newMemStorage(), nil)
	if got := s.ActiveSlug(); got != "" {
		t.Errorf("expected personal scope, got %q", got)
	}
}

func TestOpen_IgnoresAbsentMarkers(t *testing.T) {
	for _, marker := range []string{"null", "undefined", "", "NULL"} {
		st := newMemStorage()
		st.data["client-1"] = marker
		s := openStore(t, st, nil)
		if got := s.ActiveSlug(); got != "" {
			t.Errorf("marker %q: expected personal scope, got %q", marker, got)
		}
	}
}

func TestOpen_StorageErrorStartsPersonal(t *testing.T) {
	st := newMemStorage()
	st.loadErr = errors.New("unavailable")
	s := openStore(t, st, nil)
	if got := s.ActiveSlug(); got != "" {
		t.Errorf("expected personal scope, got %q", got)
	}
}

func TestSetActiveSlug_SameValueIsNoOp(t *testing.T) {
	st := newMemStorage()
	f := newFetcher(false)
	s := openStore(t, st, f)
	s.SetCredentials("cred")

	for i := 0; i < 3; i++ {
		if err := s.SetActiveSlug(context.Background(), "uon"); err != nil {
			t.Fatalf("SetActiveSlug: %v", err)
		}
	}
	s.Wait()

	if st.saves != 1 {
		t.Errorf("expected exactly 1 storage write, got %d", st.saves)
	}
	if n := f.callCount(); n != 1 {
		t.Errorf("expected at most 1 profile fetch, got %d", n)
	}
}

func TestSetActiveSlug_RoundTripPersistence(t *testing.T) {
	st := newMemStorage()
	s := openStore(t, st, nil)

	if err := s.SetActiveSlug(context.Background(), "org-x"); err != nil {
		t.Fatal(err)
	}
	reloaded := openStore(t, st, nil)
	if got := reloaded.ActiveSlug(); got != "org-x" {
		t.Errorf("expected org-x after reload, got %q", got)
	}

	if err := reloaded.SetActiveSlug(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := st.entry("client-1"); ok {
		t.Error("expected storage entry to be absent for personal scope")
	}
	again := openStore(t, st, nil)
	if got := again.ActiveSlug(); got != "" {
		t.Errorf("expected personal scope after reload, got %q", got)
	}
}

func TestSetActiveSlug_PersistErrorKeepsCommit(t *testing.T) {
	st := newMemStorage()
	st.saveErr = errors.New("disk full")
	s := openStore(t, st, nil)

	if err := s.SetActiveSlug(context.Background(), "uon"); err == nil {
		t.Error("expected persistence error")
	}
	if got := s.ActiveSlug(); got != "uon" {
		t.Errorf("expected in-memory commit to stand, got %q", got)
	}
}

func TestProfile_NotFetchedWhenUnauthenticated(t *testing.T) {
	f := newFetcher(false)
	s := openStore(t, newMemStorage(), f)

	s.SetActiveSlug(context.Background(), "uon")
	s.Wait()

	if n := f.callCount(); n != 0 {
		t.Errorf("expected no fetch without credentials, got %d", n)
	}
	if snap := s.Snapshot(); snap.Profile != nil || snap.IsLoading {
		t.Errorf("expected no profile and not loading, got %+v", snap)
	}
}

func TestProfile_FetchedWhenCredentialsArrive(t *testing.T) {
	f := newFetcher(false)
	s := openStore(t, newMemStorage(), f)

	s.SetActiveSlug(context.Background(), "uon")
	s.SetCredentials("cred-9")
	s.Wait()

	snap := s.Snapshot()
	if snap.Profile == nil || snap.Profile.Slug != "uon" {
		t.Fatalf("expected uon profile, got %+v", snap.Profile)
	}
	if f.creds[0] != "cred-9" {
		t.Errorf("expected fetch with session credential, got %q", f.creds[0])
	}

	s.SetCredentials("")
	if s.Snapshot().Profile != nil {
		t.Error("expected profile dropped on sign-out")
	}
}

func TestProfile_NotFetchedForPersonalScope(t *testing.T) {
	f := newFetcher(false)
	s := openStore(t, newMemStorage(), f)
	s.SetCredentials("cred")
	s.Wait()

	if n := f.callCount(); n != 0 {
		t.Errorf("expected no fetch in personal scope, got %d", n)
	}
}

func TestProfile_StaleFetchDiscarded(t *testing.T) {
	f := newFetcher(true)
	s := openStore(t, newMemStorage(), f)
	s.SetCredentials("cred")

	s.SetActiveSlug(context.Background(), "a")
	s.SetActiveSlug(context.Background(), "b")

	waitCalls(t, f, 2)
	f.release("a")
	f.release("b")
	s.Wait()

	snap := s.Snapshot()
	if snap.Profile == nil || snap.Profile.Slug != "b" {
		t.Errorf("expected profile for b, got %+v", snap.Profile)
	}
}

func TestProfile_StaleFetchNeverAppliedWhileNewerPending(t *testing.T) {
	f := newFetcher(true)
	s := openStore(t, newMemStorage(), f)
	s.SetCredentials("cred")

	defer f.release("b")

	s.SetActiveSlug(context.Background(), "a")
	s.SetActiveSlug(context.Background(), "b")
	waitCalls(t, f, 2)
	f.release("a")

	deadline := time.Now().Add(50 * time.Millisecond)
	for time.Now().Before(deadline) {
		if p := s.Snapshot().Profile; p != nil {
			t.Fatalf("expected no profile while b is pending, got %+v", p)
		}
		time.Sleep(time.Millisecond)
	}
	if !s.Snapshot().IsLoading {
		t.Error("expected loading while b is pending")
	}
}

func TestProfile_FailureClearsProfileKeepsSlug(t *testing.T) {
	f := newFetcher(false)
	s := openStore(t, newMemStorage(), f)
	s.SetCredentials("cred")

	s.SetActiveSlug(context.Background(), "good")
	s.Wait()
	if s.Snapshot().Profile == nil {
		t.Fatal("expected profile for good")
	}

	f.mu.Lock()
	f.results["bad"] = errors.New("boom")
	f.mu.Unlock()
	s.SetActiveSlug(context.Background(), "bad")
	s.Wait()

	snap := s.Snapshot()
	if snap.Profile != nil {
		t.Errorf("expected nil profile after failure, got %+v", snap.Profile)
	}
	if snap.ActiveSlug != "bad" {
		t.Errorf("expected slug retained, got %q", snap.ActiveSlug)
	}
	if snap.IsLoading {
		t.Error("expected loading cleared after failure")
	}
}

func TestSnapshot_RoleFromMemberships(t *testing.T) {
	s := openStore(t, newMemStorage(), nil)
	s.SetMemberships([]models.Membership{
		{OrganizationSlug: "uon", Role: "student", IsActive: true},
		{OrganizationSlug: "old", Role: "admin", IsActive: false},
	})

	s.SetActiveSlug(context.Background(), "uon")
	if got := s.Snapshot().ActiveRole; got != "student" {
		t.Errorf("expected student, got %q", got)
	}
	s.SetActiveSlug(context.Background(), "old")
	if got := s.Snapshot().ActiveRole; got != "" {
		t.Errorf("expected no role for inactive membership, got %q", got)
	}
	s.SetRole("old", "viewer")
	if got := s.Snapshot().ActiveRole; got != "viewer" {
		t.Errorf("expected viewer, got %q", got)
	}
}

func TestBeginVerify(t *testing.T) {
	s := openStore(t, newMemStorage(), nil)
	done := s.BeginVerify()
	if !s.Snapshot().IsVerifying {
		t.Error("expected verifying")
	}
	done()
	done()
	if s.Snapshot().IsVerifying {
		t.Error("expected verifying cleared")
	}
}

func waitCalls(t *testing.T, f *gatedFetcher, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.callCount() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Errorf("expected %d fetch calls, got %d", n, f.callCount())
}
