package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization is the isolation boundary for uploads and master data.
// Every job and every committed question belongs to exactly one organization.
type Organization struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;" json:"id"`
	Name      string         `gorm:"unique;not null" json:"name"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OwnerContext carries the identity and organizational scope a job was
// submitted under. It is built by the request middleware from the verified
// token and is immutable for the lifetime of the job.
type OwnerContext struct {
	UserEmail      string    `json:"user_email"`
	OrganizationID uuid.UUID `json:"organization_id"`
}

// Matches reports whether another context identifies the same owner.
func (oc OwnerContext) Matches(other OwnerContext) bool {
	return oc.UserEmail == other.UserEmail && oc.OrganizationID == other.OrganizationID
}
