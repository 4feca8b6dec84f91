package models

import "time"

// Customer status
const (
	CustomerStatusLead   = "lead"
	CustomerStatusActive = "active"
)

// Customer represents a customer record linked from cards. Cached locally,
// owned by the remote store.
type Customer struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	WorkspaceID string    `json:"workspace_id" gorm:"index;size:36;not null"`
	CompanyName string    `json:"company_name" gorm:"size:200"`
	Status      string    `json:"status" gorm:"size:20;default:'lead'"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}
