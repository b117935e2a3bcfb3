// Package binder stamps outgoing backend requests with the caller's active
// organization.
package binder

import (
	"net/http"

	"github.com/dalemusser/learnhub/internal/app/system/activecontext"
)

// DefaultHeader names the organization scope on backend requests.
const DefaultHeader = "X-Organization-Slug"

// Transport is an http.RoundTripper that reads the active slug of the Store
// carried by the request context at dispatch time. A non-empty slug is set
// as Header; otherwise Header is removed so a previous scope cannot leak.
type Transport struct {
	Base   http.RoundTripper
	Header string
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	slug := ""
	if s := activecontext.FromContext(req.Context()); s != nil {
		slug = s.ActiveSlug()
	}

	r := req.Clone(req.Context())
	if slug != "" {
		r.Header.Set(t.header(), slug)
	} else {
		r.Header.Del(t.header())
	}
	return t.base().RoundTrip(r)
}

func (t *Transport) header() string {
	if t.Header == "" {
		return DefaultHeader
	}
	return t.Header
}

func (t *Transport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

// Install wraps client's transport with a Transport. It reports false and
// changes nothing when client is already bound, so repeated calls never stack
// binders.
func Install(client *http.Client, header string) bool {
	if _, ok := client.Transport.(*Transport); ok {
		return false
	}
	client.Transport = &Transport{Base: client.Transport, Header: header}
	return true
}
