package activecontext

import (
	"net/http"

	"github.com/dalemusser/learnhub/internal/domain/models"
	"go.uber.org/zap"
)

// GateObserver connects the access gate to the request's Store: a slug the
// gate admits becomes the active slug, and IsVerifying is true while the
// gate's status query runs.
type GateObserver struct {
	Log *zap.Logger
}

// Verifying marks the Store as verifying until the returned func is called.
func (o GateObserver) Verifying(r *http.Request, _ string) func() {
	s := FromRequest(r)
	if s == nil {
		return func() {}
	}
	return s.BeginVerify()
}

// Admitted adopts slug and the role the backend reported for it.
func (o GateObserver) Admitted(r *http.Request, slug string, status models.AccessStatus) {
	s := FromRequest(r)
	if s == nil {
		return
	}
	s.SetRole(slug, status.Role)
	if err := s.SetActiveSlug(r.Context(), slug); err != nil && o.Log != nil {
		o.Log.Warn("admitted context not persisted",
			zap.String("slug", slug),
			zap.Error(err))
	}
}
