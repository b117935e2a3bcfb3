// internal/domain/models/activeslug.go
package models

import "time"

// ActiveSlugRecord is the persisted active-organization entry for one client.
// Personal scope is represented by the absence of a record, never by an
// empty Slug.
type ActiveSlugRecord struct {
	ClientID  string    `bson:"_id"`
	Slug      string    `bson:"slug"`
	UpdatedAt time.Time `bson:"updated_at"`
}
