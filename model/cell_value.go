package model

import (
	"time"
)

// CellValue is the persisted value of one (university, column) cell
type CellValue struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	UniversityID string    `gorm:"type:uuid;not null;uniqueIndex:idx_cell_university_column" json:"university_id"`
	ColumnID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_cell_university_column" json:"column_id"`
	Value        string    `gorm:"type:text" json:"value"`
	LastUpdated  time.Time `gorm:"not null" json:"last_updated"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for CellValue
func (CellValue) TableName() string {
	return "cell_values"
}
