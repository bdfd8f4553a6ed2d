package models

import "time"

// LocationStatus is the lifecycle status of a location.
type LocationStatus string

const (
	LocationActive   LocationStatus = "active"
	LocationInactive LocationStatus = "inactive"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is the canonical form of a site where jobs are scheduled.
// ID equals the document id and is the cross-store join key.
type Location struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Address        string         `json:"address"`
	OrganizationID string         `json:"organization_id"`
	Coordinates    *Coordinates   `json:"coordinates,omitempty"`
	Status         LocationStatus `json:"status"`
	CreatedAt      *time.Time     `json:"created_at,omitempty"` // nil: not known from the source
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`
}
