package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// UniversityStatus tracks where a university is in its enrichment cycle.
type UniversityStatus string

const (
	StatusPending         UniversityStatus = "pending"
	StatusProcessing      UniversityStatus = "processing"
	StatusCompleted       UniversityStatus = "completed"
	StatusFailed          UniversityStatus = "failed"
	StatusColumnProcessed UniversityStatus = "column_processed"
)

// University represents a tracked university (one grid row) owned by a user
type University struct {
	ID          string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserEmail   string           `gorm:"index;not null" json:"user_email"`
	Name        string           `gorm:"not null" json:"name"`
	URL         string           `gorm:"type:varchar(512)" json:"url"`
	Programs    pq.StringArray   `gorm:"type:text[]" json:"programs"`
	Status      UniversityStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	LastUpdated time.Time        `json:"last_updated"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	DeletedAt   gorm.DeletedAt   `gorm:"index" json:"-"`

	// Relationships
	CellValues []CellValue `gorm:"foreignKey:UniversityID;constraint:OnDelete:CASCADE" json:"-"`
}
