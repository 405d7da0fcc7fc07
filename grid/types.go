// Package grid implements the incremental cell-synchronization engine
// behind the dashboard's main data grid. Rows are universities, columns
// are fixed or user-defined attributes, and cell values arrive
// asynchronously: over the push channel, from debounced batch fetches,
// or from the sequential backfill that runs when a column is added.
package grid

import (
	"time"

	"github.com/sahilchouksey/gradgrid/model"
)

// Entity is the engine's read-mostly snapshot of one university row.
// It is refreshed wholesale from the details endpoint on demand.
type Entity struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	URL         string                 `json:"url"`
	Programs    []string               `json:"programs"`
	Status      model.UniversityStatus `json:"status"`
	LastUpdated time.Time              `json:"last_updated"`
}

// Cell is the state of one (entity, column) slot.
//
// Loading=false with Value=nil means "not yet requested" - it is never
// an error state. While Loading is true, StaleValue keeps any previous
// value as a hint but must not be rendered as current.
type Cell struct {
	Loading       bool
	Value         *string
	StaleValue    *string
	LastUpdatedAt time.Time
}

// CellView is the render-ready projection of a cell placed on a Row.
type CellView struct {
	Loading bool    `json:"loading"`
	Value   *string `json:"value"`
}

// Row is the closed envelope handed to rendering code. Fixed fields
// live beside computed cells so column access stays type-safe instead
// of going through an open string-keyed record.
type Row struct {
	ID          string              `json:"id"`
	FixedFields Entity              `json:"fixed_fields"`
	Cells       map[string]CellView `json:"cells"`
}

// SessionUser identifies the current session for ownership checks and
// push-channel filtering.
type SessionUser struct {
	Email string
	Admin bool
}

// VisibilityPolicy is the subscription-derived input deciding how many
// rows the user may see.
type VisibilityPolicy struct {
	SubscriptionStatus model.SubscriptionStatus
	IsPremium          bool
}
