// Database models for cached work cards
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// CardStatus represents the lifecycle status of a card.
type CardStatus string

const (
	CardStatusOpen       CardStatus = "open"
	CardStatusInProgress CardStatus = "in_progress"
	CardStatusDone       CardStatus = "done"
	CardStatusCancelled  CardStatus = "cancelled"
)

// CardPriority represents the urgency of a card.
type CardPriority string

const (
	PriorityUrgent CardPriority = "urgent"
	PriorityHigh   CardPriority = "high"
	PriorityNormal CardPriority = "normal"
	PriorityLow    CardPriority = "low"
)

// ParseStatus normalizes a raw status value coming from the remote store.
// Unknown or missing values default to open; remote rows are loosely typed
// and must never break the client.
func ParseStatus(raw string) CardStatus {
	switch CardStatus(strings.TrimSpace(strings.ToLower(raw))) {
	case CardStatusOpen, CardStatusInProgress, CardStatusDone, CardStatusCancelled:
		return CardStatus(strings.TrimSpace(strings.ToLower(raw)))
	default:
		return CardStatusOpen
	}
}

// ParsePriority normalizes a raw priority value. Unknown or missing values
// default to normal.
func ParsePriority(raw string) CardPriority {
	switch CardPriority(strings.TrimSpace(strings.ToLower(raw))) {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return CardPriority(strings.TrimSpace(strings.ToLower(raw)))
	default:
		return PriorityNormal
	}
}

// StringList stores a JSON string array in a single column.
type StringList []string

// Value implements driver.Valuer for StringList.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for StringList.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, l)
}

// Member links a user to a card with a role.
type Member struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// MemberList stores card members as JSON in a single column.
type MemberList []Member

// Value implements driver.Valuer for MemberList.
func (m MemberList) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for MemberList.
func (m *MemberList) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, m)
}

// Card is a trackable unit of work. The durable copy lives in the remote
// store; this row is the local eventually-consistent cache.
type Card struct {
	ID            string       `json:"id" gorm:"primaryKey;size:36"`
	WorkspaceID   string       `json:"workspace_id" gorm:"index;size:36;not null"`
	Title         string       `json:"title" gorm:"size:200"`
	Description   string       `json:"description" gorm:"type:text"`
	Status        CardStatus   `json:"status" gorm:"size:20;default:'open'"`
	Priority      CardPriority `json:"priority" gorm:"size:20;default:'normal'"`
	Labels        StringList   `json:"labels,omitempty" gorm:"type:text"`
	DueDate       *time.Time   `json:"due_date,omitempty"`
	LastMessageAt *time.Time   `json:"last_message_at,omitempty"`
	UnreadCount   int          `json:"unread_count" gorm:"default:0"`
	CustomerID    *string      `json:"customer_id,omitempty" gorm:"index;size:36"`
	Members       MemberList   `json:"members,omitempty" gorm:"type:text"`
	NewBusiness   bool         `json:"new_business" gorm:"default:false"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	ArchivedAt    *time.Time   `json:"archived_at,omitempty"`
}

func (Card) TableName() string {
	return "cards"
}

// Normalize clamps loosely-typed fields pulled from the remote store into
// valid values. unread_count is never negative.
func (c *Card) Normalize() {
	c.Status = ParseStatus(string(c.Status))
	c.Priority = ParsePriority(string(c.Priority))
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}
}

// LabelFollowUp tags cards created from selected insights at commit time.
const LabelFollowUp = "follow-up"
