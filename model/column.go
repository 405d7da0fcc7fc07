package model

import (
	"time"

	"gorm.io/gorm"
)

// ColumnScope controls who may see and delete a column
type ColumnScope string

const (
	// ScopeFixed columns are code-defined and never stored or deleted
	ScopeFixed ColumnScope = "fixed"
	// ScopeGlobal columns are admin-curated and visible to everyone
	ScopeGlobal ColumnScope = "global"
	// ScopeUser columns belong to the user who created them
	ScopeUser ColumnScope = "user"
)

// Column represents a grid column whose per-university values are
// computed by the retrieval backend
type Column struct {
	ID         string         `gorm:"primaryKey;type:uuid" json:"id"`
	Title      string         `gorm:"not null" json:"title"`
	Scope      ColumnScope    `gorm:"type:varchar(10);not null;default:'user'" json:"scope"`
	OwnerEmail string         `gorm:"index" json:"owner_email,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// Fixed column ids. These double as the University field names the grid
// falls back to when no computed cell exists.
const (
	FixedColumnName        = "name"
	FixedColumnURL         = "url"
	FixedColumnPrograms    = "programs"
	FixedColumnStatus      = "status"
	FixedColumnLastUpdated = "last_updated"
)

// FixedColumns returns the built-in columns every grid starts with.
func FixedColumns() []Column {
	return []Column{
		{ID: FixedColumnName, Title: "Name", Scope: ScopeFixed},
		{ID: FixedColumnURL, Title: "Website", Scope: ScopeFixed},
		{ID: FixedColumnPrograms, Title: "Programs", Scope: ScopeFixed},
		{ID: FixedColumnStatus, Title: "Status", Scope: ScopeFixed},
		{ID: FixedColumnLastUpdated, Title: "Last Updated", Scope: ScopeFixed},
	}
}

// IsFixed reports whether id names a fixed column.
func IsFixed(id string) bool {
	switch id {
	case FixedColumnName, FixedColumnURL, FixedColumnPrograms, FixedColumnStatus, FixedColumnLastUpdated:
		return true
	}
	return false
}
