package models

import "gorm.io/gorm"

// User represents a registered account. The password hash is never serialized.
type User struct {
	ID         string        `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Username   string        `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=1,max=100"`
	Email      string        `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password   string        `json:"-" gorm:"type:varchar(255)" validate:"required,min=1"` // Never serialized
	Flows      []FlowSummary `json:"flows" gorm:"foreignKey:UserID"`
	gorm.Model               // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// Progress values a FlowSummary may carry. Flat set, no transition graph.
const (
	ProgressPending    = "pending"
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
	ProgressTerminated = "terminated"
)

// Visibility values a FlowSummary may carry.
const (
	VisibilityProtected = "protected"
	VisibilityPublic    = "public"
)

// FlowSummary is the lightweight listing record for a Flow, kept in its own table
// and rendered inside the owning User. Its UserID must always match the UserID of
// the Flow it references.
type FlowSummary struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID     string `json:"userId" gorm:"index;type:varchar(36)"`
	FlowID     string `json:"flowId" gorm:"uniqueIndex;type:varchar(36)"`
	Name       string `json:"name"`
	Progress   string `json:"progress"`
	Visibility string `json:"visibility"`
	gorm.Model
}
