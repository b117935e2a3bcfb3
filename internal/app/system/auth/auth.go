// Package auth manages the browser session: the stable client ID, the
// backend session credential, and the signed-in user.
//
// The frontend holds no passwords. Signing in exchanges email and password for
// a backend session credential, which is kept in an encrypted cookie and sent
// back to the backend on every API call made for this browser.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/learnhub/internal/app/system/backend"
	"github.com/dalemusser/learnhub/internal/app/system/timeouts"
	"github.com/dalemusser/learnhub/internal/domain/models"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
)

const (
	clientIDKey   = "client_id"
	credentialKey = "credential"
	userKey       = "user"
)

// SessionUser is the signed-in user cached in the session and injected into
// the request context.
type SessionUser struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Email       string              `json:"email"`
	Verified    bool                `json:"verified"`
	Memberships []models.Membership `json:"memberships,omitempty"`
}

// FromUser builds a SessionUser from the backend's user record.
func FromUser(u models.User) *SessionUser {
	return &SessionUser{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Verified:    u.Verified,
		Memberships: u.Organizations,
	}
}

// MembershipFor returns the user's active membership in slug.
func (u *SessionUser) MembershipFor(slug string) (models.Membership, bool) {
	if u == nil {
		return models.Membership{}, false
	}
	return models.FindMembership(u.Memberships, slug)
}

// UserFetcher refreshes the user behind a backend credential. It returns
// backend.ErrUnauthenticated when the credential is no longer valid.
type UserFetcher interface {
	FetchUser(ctx context.Context, credential string) (*SessionUser, error)
}

// Me is the part of the backend client used to identify the session.
type Me interface {
	Me(ctx context.Context) (models.User, error)
}

// BackendFetcher adapts the backend's who-am-I endpoint to UserFetcher.
type BackendFetcher struct {
	Client Me
}

// FetchUser implements UserFetcher.
func (f BackendFetcher) FetchUser(ctx context.Context, credential string) (*SessionUser, error) {
	u, err := f.Client.Me(backend.WithCredentials(ctx, credential))
	if err != nil {
		return nil, err
	}
	return FromUser(u), nil
}

// SessionManager owns the session cookie store.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	fetcher UserFetcher
	log     *zap.Logger
}

// NewSessionManager creates a SessionManager. Cookie hash and encryption keys
// are derived from sessionKey; an empty sessionKey gets a random key, so
// sessions will not survive a restart. In production (secure=true) cookies
// are Secure with SameSite=None; otherwise SameSite=Lax over plain http.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if name == "" {
		return nil, errors.New("session name is empty")
	}

	secret := []byte(sessionKey)
	switch {
	case sessionKey == "":
		secret = securecookie.GenerateRandomKey(32)
		if secret == nil {
			return nil, errors.New("generate session key: no randomness")
		}
		logger.Warn("session key not configured; using a random key, sessions end on restart")
	case len(sessionKey) < 32:
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}

	hashKey, blockKey, err := deriveKeys(secret)
	if err != nil {
		return nil, err
	}
	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}
	store.MaxAge(store.Options.MaxAge)

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// deriveKeys expands secret into a 64-byte HMAC key and a 32-byte AES key.
func deriveKeys(secret []byte) (hashKey, blockKey []byte, err error) {
	r := hkdf.New(sha256.New, secret, nil, []byte("learnhub session cookie"))
	hashKey = make([]byte, 64)
	blockKey = make([]byte, 32)
	if _, err := io.ReadFull(r, hashKey); err != nil {
		return nil, nil, fmt.Errorf("derive session hash key: %w", err)
	}
	if _, err := io.ReadFull(r, blockKey); err != nil {
		return nil, nil, fmt.Errorf("derive session block key: %w", err)
	}
	return hashKey, blockKey, nil
}

// SetUserFetcher enables refreshing the session user on each request.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) {
	sm.fetcher = f
}

// Store returns the underlying cookie store.
func (sm *SessionManager) Store() *sessions.CookieStore { return sm.store }

// Name returns the session cookie name.
func (sm *SessionManager) Name() string { return sm.name }

// GetSession returns the request's session. On a decode error a fresh
// session is returned along with the error.
func (sm *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return sm.store.Get(r, sm.name)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request context                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

type ctxKey string

const (
	currentUserKey ctxKey = "currentUser"
	credentialCtx  ctxKey = "credential"
	clientIDCtx    ctxKey = "clientID"
)

// CurrentUser returns the signed-in user and whether there is one.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// Credentials returns the backend session credential of the request, or "".
func Credentials(r *http.Request) string {
	v, _ := r.Context().Value(credentialCtx).(string)
	return v
}

// ClientID returns the browser's stable client ID, or "".
func ClientID(r *http.Request) string {
	v, _ := r.Context().Value(clientIDCtx).(string)
	return v
}

// WithTestUser returns r carrying u, a credential and a client ID, as
// LoadSessionUser would. For tests.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	ctx := context.WithValue(r.Context(), currentUserKey, u)
	ctx = context.WithValue(ctx, credentialCtx, "test-credential")
	ctx = context.WithValue(ctx, clientIDCtx, "test-client")
	return r.WithContext(ctx)
}

// WithTestClient returns r carrying only a client ID, as for an anonymous
// browser. For tests.
func WithTestClient(r *http.Request, clientID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), clientIDCtx, clientID))
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// LoadSessionUser assigns the browser a client ID on its first request and
// injects the client ID, credential and user into the request context.
//
// With a UserFetcher set, the user is refreshed from the backend on every
// request. A rejected credential ends the session; any other fetch error
// falls back to the cached user.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.GetSession(r)
		if err != nil {
			sm.log.Debug("session decode failed, starting fresh", zap.Error(err))
		}

		dirty := false
		clientID := getString(sess, clientIDKey)
		if clientID == "" {
			clientID = uuid.NewString()
			sess.Values[clientIDKey] = clientID
			dirty = true
		}
		ctx := context.WithValue(r.Context(), clientIDCtx, clientID)

		cred := getString(sess, credentialKey)
		if cred != "" {
			u, ok := sm.resolveUser(r.Context(), sess, cred)
			if ok {
				ctx = context.WithValue(ctx, credentialCtx, cred)
				ctx = context.WithValue(ctx, currentUserKey, u)
			} else {
				delete(sess.Values, credentialKey)
				delete(sess.Values, userKey)
				dirty = true
			}
		}

		if dirty {
			if err := sess.Save(r, w); err != nil {
				sm.log.Error("save session", zap.Error(err))
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (sm *SessionManager) resolveUser(ctx context.Context, sess *sessions.Session, cred string) (*SessionUser, bool) {
	cached := decodeUser(getString(sess, userKey))
	if sm.fetcher == nil {
		return cached, cached != nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()
	u, err := sm.fetcher.FetchUser(ctx, cred)
	switch {
	case err == nil && u != nil:
		return u, true
	case errors.Is(err, backend.ErrUnauthenticated):
		sm.log.Info("backend session expired; signing out")
		return nil, false
	default:
		sm.log.Warn("who-am-i failed; using cached session user", zap.Error(err))
		return cached, cached != nil
	}
}

// RequireSignedIn ensures there is a user in context (set by LoadSessionUser).
// If not signed in:
//   - HTMX: sends HX-Redirect to /login?redirect=...
//   - HTML: 303 redirect to /login?redirect=...
//   - API:  401 Unauthorized with a plain error body.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}

		dest := "/login?redirect=" + url.QueryEscape(r.URL.RequestURI())

		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", dest)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if wantsHTML(r) {
			http.Redirect(w, r, dest, http.StatusSeeOther)
			return
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Sign in / out                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// SignIn stores the backend credential and user in the session. The client
// ID is kept so the browser's active context survives signing in.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, credential string, u *SessionUser) error {
	sess, err := sm.GetSession(r)
	if err != nil {
		sm.log.Warn("session cookie invalid, using fresh session", zap.Error(err))
	}
	if getString(sess, clientIDKey) == "" {
		if id := ClientID(r); id != "" {
			sess.Values[clientIDKey] = id
		} else {
			sess.Values[clientIDKey] = uuid.NewString()
		}
	}
	sess.Values[credentialKey] = credential
	sess.Values[userKey] = encodeUser(u)
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SignOut deletes the session cookie.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, err := sm.GetSession(r)
	if err != nil {
		sm.log.Warn("session decode failed during logout", zap.Error(err))
	}

	// The deletion cookie must match the store's settings.
	if opts := sm.store.Options; opts != nil {
		sess.Options.Domain = opts.Domain
		sess.Options.Path = opts.Path
		sess.Options.Secure = opts.Secure
		sess.Options.HttpOnly = opts.HttpOnly
		sess.Options.SameSite = opts.SameSite
	}
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// helpers

func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

// Users are kept as JSON so the session needs no gob type registration.
func encodeUser(u *SessionUser) string {
	if u == nil {
		return ""
	}
	b, err := json.Marshal(u)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeUser(s string) *SessionUser {
	if s == "" {
		return nil
	}
	var u SessionUser
	if err := json.Unmarshal([]byte(s), &u); err != nil {
		return nil
	}
	return &u
}

func wantsHTML(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
