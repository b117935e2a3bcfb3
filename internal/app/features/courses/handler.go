// internal/app/features/courses/handler.go
package courses

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/learnhub/internal/app/system/activecontext"
	"github.com/dalemusser/learnhub/internal/app/system/auth"
	"github.com/dalemusser/learnhub/internal/app/system/backend"
	"github.com/dalemusser/learnhub/internal/app/system/timeouts"
	"github.com/dalemusser/learnhub/internal/app/system/viewdata"
	"github.com/dalemusser/learnhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// Catalog lists courses. The backend client scopes the list by the
// organization header the binder adds from the request's Store.
type Catalog interface {
	Courses(ctx context.Context) ([]models.Course, error)
}

type Handler struct {
	Catalog Catalog
	Log     *zap.Logger
}

func NewHandler(catalog Catalog, logger *zap.Logger) *Handler {
	return &Handler{Catalog: catalog, Log: logger}
}

type listData struct {
	viewdata.BaseVM
	Scope    string // active organization slug; empty for the full catalog
	Query    string
	FreeOnly bool
	Courses  []models.Course
	Error    string
}

// ServeList handles GET /courses and GET /{orgSlug}/courses.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	data := listData{
		BaseVM:   viewdata.NewBaseVM(r, "Courses", "/dashboard"),
		Query:    strings.TrimSpace(query.Get(r, "q")),
		FreeOnly: query.Get(r, "free") == "1",
	}
	if s := activecontext.FromRequest(r); s != nil {
		data.Scope = s.ActiveSlug()
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Catalog.Courses(backend.WithCredentials(ctx, auth.Credentials(r)))
	if err != nil {
		h.Log.Warn("list courses failed",
			zap.String("scope", data.Scope),
			zap.Error(err))
		data.Error = "Courses are unavailable right now."
		w.WriteHeader(http.StatusBadGateway)
		templates.Render(w, r, "courses_list", data)
		return
	}

	data.Courses = filter(list, data.Query, data.FreeOnly)
	templates.Render(w, r, "courses_list", data)
}

func filter(list []models.Course, q string, freeOnly bool) []models.Course {
	q = strings.ToLower(q)
	out := make([]models.Course, 0, len(list))
	for _, c := range list {
		if freeOnly && !c.IsFree {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(c.Title), q) && !strings.Contains(strings.ToLower(c.Summary), q) {
			continue
		}
		out = append(out, c)
	}
	return out
}
