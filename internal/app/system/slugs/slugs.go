// Package slugs knows which first path segments are application routes and
// which may name an organization.
package slugs

import (
	"strings"
	"sync"
)

// base lists path segments owned by fixed application routes. They occupy
// the same URL position as an organization slug but never name one.
var base = []string{
	"about", "admin", "api", "books", "cart", "contact", "context",
	"courses", "dashboard", "events", "health", "login", "logout",
	"notifications", "organizations", "payments", "privacy", "profile",
	"register", "search", "settings", "static", "terms", "wishlist",
}

var (
	mu       sync.RWMutex
	reserved = build(nil)
)

func build(extra []string) map[string]struct{} {
	set := make(map[string]struct{}, len(base)+len(extra))
	for _, s := range base {
		set[s] = struct{}{}
	}
	for _, s := range extra {
		if s = Normalize(s); s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

// Configure extends the reserved set with extra segments. It replaces any
// previous extension; the base set is always kept. Call during startup.
func Configure(extra []string) {
	set := build(extra)
	mu.Lock()
	reserved = set
	mu.Unlock()
}

// ParseList splits a comma separated config value into segments.
func ParseList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsReserved reports whether segment is a fixed application route.
func IsReserved(segment string) bool {
	segment = Normalize(segment)
	mu.RLock()
	_, ok := reserved[segment]
	mu.RUnlock()
	return ok
}

// Reserved returns a copy of the current reserved set.
func Reserved() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(reserved))
	for s := range reserved {
		out = append(out, s)
	}
	return out
}

// Normalize trims and lowercases a slug candidate.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Organization returns the organization slug named by segment, or "" when the
// segment is empty or reserved. The access gate and the route announcer both
// decide "is this an organization route" here, so they cannot disagree.
func Organization(segment string) string {
	s := Normalize(segment)
	if s == "" || IsReserved(s) {
		return ""
	}
	return s
}
