// internal/domain/models/access.go
package models

// AccessStatus is the combined answer of
// GET /organizations/check-access/{slug}/ for the requesting session.
type AccessStatus struct {
	OrganizationExists bool `json:"organization_exists"`
	IsAuthenticated    bool `json:"is_authenticated"`
	IsMember           bool `json:"is_member"`
	// Role is optional; some backends return the member's role alongside.
	Role string `json:"role,omitempty"`
}
