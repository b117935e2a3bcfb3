// Package backend is the HTTP client for the platform's REST API.
//
// Every request is built from a context.Context. The caller's backend session
// credential travels in that context (WithCredentials) and is sent as the
// backend's session cookie. Organization scoping is not handled here; it is
// added by the transport installed on the underlying http.Client.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/learnhub/internal/domain/models"
)

// DefaultCredentialCookie is the backend's session cookie name.
const DefaultCredentialCookie = "sessionid"

var (
	// ErrUnauthenticated is returned when the backend rejects the session.
	ErrUnauthenticated = errors.New("backend: not authenticated")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("backend: not found")
	// ErrInvalidLogin is returned when the backend rejects login credentials.
	ErrInvalidLogin = errors.New("backend: invalid email or password")
)

// StatusError describes an unexpected HTTP status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: status %d: %s", e.Code, e.Body)
}

type credKey struct{}

// WithCredentials returns a context whose backend requests authenticate as
// the session identified by credential.
func WithCredentials(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credKey{}, credential)
}

// CredentialsFrom returns the credential carried by ctx.
func CredentialsFrom(ctx context.Context) string {
	v, _ := ctx.Value(credKey{}).(string)
	return v
}

// Client talks to the REST backend.
type Client struct {
	BaseURL          string
	HTTPClient       *http.Client
	CredentialCookie string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the http.Client used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = hc
	}
}

// WithCredentialCookie sets the name of the backend session cookie.
func WithCredentialCookie(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.CredentialCookie = name
		}
	}
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:          strings.TrimRight(baseURL, "/"),
		HTTPClient:       &http.Client{Timeout: 10 * time.Second},
		CredentialCookie: DefaultCredentialCookie,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckAccess asks whether the organization exists and whether the session
// in ctx is signed in and a member. 4xx responses carry a status body and are
// decoded like 2xx ones; 5xx, transport and decode failures are errors.
func (c *Client) CheckAccess(ctx context.Context, slug string) (models.AccessStatus, error) {
	path := "/organizations/check-access/" + url.PathEscape(slug) + "/"
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return models.AccessStatus{}, fmt.Errorf("check access: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return models.AccessStatus{}, fmt.Errorf("check access: %w", statusError(resp))
	}
	var st models.AccessStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return models.AccessStatus{}, fmt.Errorf("check access: decode status %d: %w", resp.StatusCode, err)
	}
	return st, nil
}

// OrganizationDetails fetches the profile of the organization slug.
func (c *Client) OrganizationDetails(ctx context.Context, slug string) (models.OrganizationProfile, error) {
	var p models.OrganizationProfile
	if err := c.getJSON(ctx, "/organizations/"+url.PathEscape(slug)+"/details/", &p); err != nil {
		return models.OrganizationProfile{}, fmt.Errorf("organization details %q: %w", slug, err)
	}
	return p, nil
}

// Me returns the user behind the session in ctx.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var u models.User
	if err := c.getJSON(ctx, "/users/me/", &u); err != nil {
		return models.User{}, fmt.Errorf("who am i: %w", err)
	}
	return u, nil
}

// Courses lists the catalog visible in the request's organization scope.
// Both a bare array and a paginated {"results": [...]} body are accepted.
func (c *Client) Courses(ctx context.Context) ([]models.Course, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/courses/", &raw); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	var courses []models.Course
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &courses); err != nil {
			return nil, fmt.Errorf("list courses: %w", err)
		}
		return courses, nil
	}
	var page struct {
		Results []models.Course `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return page.Results, nil
}

// Login signs in with email and password and returns the backend session
// credential set by the response.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	resp, err := c.send(ctx, http.MethodPost, "/auth/login/", body)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		return "", ErrInvalidLogin
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("login: %w", statusError(resp))
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == c.CredentialCookie && ck.Value != "" {
			return ck.Value, nil
		}
	}
	return "", fmt.Errorf("login: response did not set %q cookie", c.CredentialCookie)
}

// Logout ends the backend session in ctx.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, "/auth/logout/", nil)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("logout: %w", statusError(resp))
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthenticated
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if c == nil {
		return nil, errors.New("backend client is nil")
	}
	if c.BaseURL == "" {
		return nil, errors.New("backend base URL is required")
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred := CredentialsFrom(ctx); cred != "" {
		req.AddCookie(&http.Cookie{Name: c.CredentialCookie, Value: cred})
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return hc.Do(req)
}

func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
