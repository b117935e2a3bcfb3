// internal/domain/models/course.go
package models

// Course is a catalog entry from GET /courses/. The backend scopes the list
// to the organization named in the request's organization header.
type Course struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Level    string `json:"level"`
	Price    string `json:"price"`
	IsFree   bool   `json:"is_free"`
	OrgSlug  string `json:"organization_slug,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}
