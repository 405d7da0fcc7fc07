package model

import (
	"time"

	"gorm.io/gorm"
)

// FreeRowLimit is how many universities an expired, non-premium user
// keeps visible. Shared by the server's expiry job and the grid's
// visibility filter so the two can never disagree.
const FreeRowLimit = 3

// SubscriptionStatus is the tier-derived state driving row visibility
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionFree      SubscriptionStatus = "free"
)

// User represents a dashboard user. Authentication flows live in an
// external identity service; this record only carries what the grid
// needs: role, subscription tier and the email used to filter the
// multi-tenant push channel.
type User struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	Email              string             `gorm:"uniqueIndex;not null" json:"email"`
	Name               string             `json:"name"`
	Role               string             `gorm:"type:varchar(20);default:'member'" json:"role"` // member, admin
	SubscriptionStatus SubscriptionStatus `gorm:"type:varchar(20);default:'free'" json:"subscription_status"`
	IsPremium          bool               `gorm:"default:false" json:"is_premium"`
	SubscriptionEnd    *time.Time         `json:"subscription_end,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	DeletedAt          gorm.DeletedAt     `gorm:"index" json:"-"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}
