package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Master data referenced by uploaded questions. Board, State and Medium are
// created on demand during an upload; Subject, CognitiveLearning and
// Difficulty must already exist inside the uploader's organization.

type Board struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Name           string    `gorm:"not null;uniqueIndex:idx_boards_org_name" json:"name"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_boards_org_name" json:"organization_id"`
	CreatedBy      string    `gorm:"not null" json:"created_by"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type State struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Name           string    `gorm:"not null;uniqueIndex:idx_states_org_name" json:"name"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_states_org_name" json:"organization_id"`
	CreatedBy      string    `gorm:"not null" json:"created_by"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Medium struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Name           string    `gorm:"not null;uniqueIndex:idx_mediums_org_name" json:"name"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_mediums_org_name" json:"organization_id"`
	CreatedBy      string    `gorm:"not null" json:"created_by"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Subject is scoped by organization, grade standard and medium: "Science" for
// class 8 in English is a different row from the same subject in Hindi.
type Subject struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Name           string    `gorm:"not null;uniqueIndex:idx_subjects_scope" json:"name"`
	Standard       string    `gorm:"not null;uniqueIndex:idx_subjects_scope" json:"standard"`
	MediumID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_subjects_scope" json:"medium_id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_subjects_scope" json:"organization_id"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
	CreatedBy      string    `gorm:"not null" json:"created_by"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Medium *Medium `gorm:"foreignKey:MediumID" json:"medium,omitempty"`
}

type CognitiveLearning struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Name           string    `gorm:"not null;uniqueIndex:idx_cognitive_org_name" json:"name"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cognitive_org_name" json:"organization_id"`
	CreatedBy      string    `gorm:"not null" json:"created_by"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Difficulty struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Name           string    `gorm:"not null;uniqueIndex:idx_difficulties_org_name" json:"name"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_difficulties_org_name" json:"organization_id"`
	CreatedBy      string    `gorm:"not null" json:"created_by"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate hooks

func (b *Board) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (s *State) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (m *Medium) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (s *Subject) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (c *CognitiveLearning) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (d *Difficulty) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
