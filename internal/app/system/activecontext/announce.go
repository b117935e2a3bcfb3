package activecontext

import (
	"net/http"

	"github.com/dalemusser/learnhub/internal/app/system/slugs"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Announce returns middleware that reconciles the request's Store with the
// organization implied by the route being rendered. The route is the
// authority: when routeSlug differs from the active slug, the Store is set
// to it. routeSlug returns "" for personal-scope routes.
func Announce(routeSlug func(*http.Request) string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := FromRequest(r)
			if s == nil {
				next.ServeHTTP(w, r)
				return
			}
			want := slugs.Organization(routeSlug(r))
			if want != s.ActiveSlug() {
				if err := s.SetActiveSlug(r.Context(), want); err != nil {
					logger.Warn("route context not persisted",
						zap.String("path", r.URL.Path),
						zap.String("slug", want),
						zap.Error(err))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AnnounceParam announces the organization named by the chi URL parameter.
// Reserved values announce personal scope.
func AnnounceParam(param string, logger *zap.Logger) func(http.Handler) http.Handler {
	return Announce(func(r *http.Request) string {
		return chi.URLParam(r, param)
	}, logger)
}

// AnnouncePersonal announces personal scope.
func AnnouncePersonal(logger *zap.Logger) func(http.Handler) http.Handler {
	return Announce(func(*http.Request) string { return "" }, logger)
}
