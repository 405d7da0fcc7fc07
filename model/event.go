package model

// Push-channel event names. Every event carries the owning user's
// email; the channel is multi-tenant and consumers filter client-side.
const (
	EventUniversityUpdate = "university_update"
	EventUserUpdate       = "user_update"
)

// UserEvent types
const (
	UserEventProcessingStarted       = "processing_started"
	UserEventSubscriptionReactivated = "subscription_reactivated"
	UserEventSubscriptionExpired     = "subscription_expired"
)

// UniversityEvent notifies that something changed for one university.
// Status and Value are optional: a bare id means "refetch this row",
// column_processed carries the freshly computed cell value, and
// completed/failed are terminal transitions for the current cycle.
type UniversityEvent struct {
	UserEmail    string           `json:"user_email"`
	UniversityID string           `json:"university_id"`
	Status       UniversityStatus `json:"status,omitempty"`
	ColumnID     string           `json:"column_id,omitempty"`
	Value        *string          `json:"value,omitempty"`
}

// UserEvent notifies about account-level changes
type UserEvent struct {
	UserEmail               string   `json:"user_email"`
	Type                    string   `json:"type"`
	UniversityIDs           []string `json:"university_ids,omitempty"`
	HiddenUniversitiesCount int      `json:"hidden_universities_count,omitempty"`
}
